package extractors

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/faultlinehq/faultline/internal/models"
	"github.com/faultlinehq/faultline/internal/utils"
)

const (
	maxTemplateLen = 500
	maxSampleMsg   = 1000
	maxSampleType  = 200
	maxSampleErr   = 500
)

var (
	uuidPattern = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	hexPattern  = regexp.MustCompile(`(?i)\b0x[0-9a-f]+\b`)
	ipPattern   = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`)
	numPattern  = regexp.MustCompile(`\b\d+\b`)
	wsPattern   = regexp.MustCompile(`\s+`)
)

// NormalizeMessage redacts the variable parts of a message so that records
// differing only in ids, addresses or counters share one template.
func NormalizeMessage(msg string) string {
	s := strings.TrimSpace(msg)
	s = uuidPattern.ReplaceAllString(s, "<uuid>")
	s = hexPattern.ReplaceAllString(s, "<hex>")
	s = ipPattern.ReplaceAllString(s, "<ip>")
	s = numPattern.ReplaceAllString(s, "<num>")
	s = wsPattern.ReplaceAllString(s, " ")
	return utils.TruncateRunes(s, maxTemplateLen)
}

// Fingerprint returns the first 12 hex characters of the SHA-1 of s.
func Fingerprint(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ClusterSet accumulates log clusters keyed by fingerprint, remembering the
// order in which fingerprints were first seen.
type ClusterSet struct {
	order []string
	byFP  map[string]*models.LogCluster
}

// NewClusterSet returns an empty set.
func NewClusterSet() *ClusterSet {
	return &ClusterSet{byFP: make(map[string]*models.LogCluster)}
}

// Len returns the number of distinct clusters.
func (c *ClusterSet) Len() int { return len(c.order) }

// Get returns the cluster with the given fingerprint, or nil.
func (c *ClusterSet) Get(fp string) *models.LogCluster { return c.byFP[fp] }

// Clusters returns copies of the clusters in first-seen order.
func (c *ClusterSet) Clusters() []models.LogCluster {
	out := make([]models.LogCluster, 0, len(c.order))
	for _, fp := range c.order {
		out = append(out, *c.byFP[fp])
	}
	return out
}

// Add folds one normalized record into the set. The first record of a new
// fingerprint contributes the bounded sample; every record bumps the
// incident count and may pull first_seen earlier.
func (c *ClusterSet) Add(view models.LogView) *models.LogCluster {
	template, stackHash := buildTemplate(view)
	fp := Fingerprint(template)

	cluster := c.byFP[fp]
	if cluster == nil {
		cluster = &models.LogCluster{
			Fingerprint: fp,
			Template:    template,
			FirstSeen:   view.Timestamp,
			Sample:      buildSample(view, stackHash),
		}
		c.byFP[fp] = cluster
		c.order = append(c.order, fp)
	}
	cluster.CountIncident++
	if view.Timestamp != nil && (cluster.FirstSeen == nil || *view.Timestamp < *cluster.FirstSeen) {
		cluster.FirstSeen = view.Timestamp
	}
	return cluster
}

// ClusterLogs groups raw records by the fingerprint of their normalized
// template.
func ClusterLogs(records []models.RawRecord) *ClusterSet {
	set := NewClusterSet()
	for _, rec := range records {
		set.Add(NormalizeLog(rec))
	}
	return set
}

// buildTemplate renders the cluster template for one record: the error type
// and message when present, the plain message otherwise, plus a hash of the
// stack trace so distinct failure paths with the same message split apart.
func buildTemplate(view models.LogView) (string, *string) {
	var parts []string
	if view.ErrorType != "" {
		parts = append(parts, "type="+NormalizeMessage(view.ErrorType))
	}
	if view.ErrorMessage != "" {
		parts = append(parts, "msg="+NormalizeMessage(view.ErrorMessage))
	} else {
		parts = append(parts, "msg="+NormalizeMessage(view.Message))
	}

	var stackHash *string
	if strings.TrimSpace(view.ErrorStack) != "" {
		h := Fingerprint(view.ErrorStack)
		stackHash = &h
		parts = append(parts, "stack="+h)
	}
	return utils.TruncateRunes(strings.Join(parts, " | "), maxTemplateLen), stackHash
}

func buildSample(view models.LogView, stackHash *string) *models.ClusterSample {
	sample := &models.ClusterSample{
		Timestamp: view.Timestamp,
		Service:   view.Service,
		Host:      view.Host,
		Message:   utils.TruncateRunes(view.Message, maxSampleMsg),
		StackHash: stackHash,
	}
	if view.ErrorType != "" {
		t := utils.TruncateRunes(view.ErrorType, maxSampleType)
		sample.ErrorType = &t
	}
	if view.ErrorMessage != "" {
		m := utils.TruncateRunes(view.ErrorMessage, maxSampleErr)
		sample.ErrorMessage = &m
	}
	return sample
}

// MergeBaselineCounts clusters the baseline records and copies matching
// counts onto the incident clusters. Fingerprints seen only in the baseline
// are dropped.
func MergeBaselineCounts(incident *ClusterSet, baseline []models.RawRecord) *ClusterSet {
	for fp, base := range ClusterLogs(baseline).byFP {
		if cluster := incident.byFP[fp]; cluster != nil {
			cluster.CountBaseline = base.CountIncident
		}
	}
	return incident
}

// spikeRatio orders clusters for ranking. A fingerprint with no baseline
// occurrences dominates every recurring one.
func spikeRatio(c models.LogCluster) float64 {
	switch {
	case c.CountBaseline == 0 && c.CountIncident > 0:
		return 9999.0
	case c.CountBaseline > 0:
		return float64(c.CountIncident) / float64(c.CountBaseline)
	default:
		return 0.0
	}
}

// RankClusters orders clusters by spike ratio then incident count, both
// descending, and returns at most limit of them. Ties keep first-seen
// order.
func RankClusters(set *ClusterSet, limit int) []models.LogCluster {
	clusters := set.Clusters()
	sort.SliceStable(clusters, func(i, j int) bool {
		ri, rj := spikeRatio(clusters[i]), spikeRatio(clusters[j])
		if ri != rj {
			return ri > rj
		}
		return clusters[i].CountIncident > clusters[j].CountIncident
	})
	if limit > 0 && len(clusters) > limit {
		clusters = clusters[:limit]
	}
	return clusters
}
