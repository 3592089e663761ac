package models

// EventItem is one deploy/config/infra event inside the incident window.
type EventItem struct {
	TS    string   `json:"ts"`
	Title string   `json:"title"`
	Text  string   `json:"text"`
	Tags  []string `json:"tags"`
	URL   *string  `json:"url"`
}
