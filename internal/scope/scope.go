package scope

import (
	"sort"
	"strings"

	"github.com/faultlinehq/faultline/internal/models"
)

// Scope identifies what an incident is about: the service, environment and
// infrastructure the downstream queries should filter on. Empty strings mean
// unresolved. Resolution is best-effort and never fails.
type Scope struct {
	Service string
	Env     string
	Region  string
	Cluster string
	Hosts   []string
	Pods    []string
	Tags    map[string]string
}

// FromMonitorTags resolves the scope from monitor tags such as
// "service:checkout". The first value seen for a key wins.
func FromMonitorTags(tags []string) Scope {
	tm := tagsToMap(tags)
	return Scope{
		Service: firstTag(tm, "service", "svc"),
		Env:     firstTag(tm, "env", "environment"),
		Region:  firstTag(tm, "region", "aws_region"),
		Cluster: firstTag(tm, "cluster", "kube_cluster_name"),
		Tags:    tm,
	}
}

// FromLogs resolves the scope by plurality vote over incident log records:
// the most frequent service, host set, and ddtags-derived env/region/cluster.
// Ties break lexicographically.
func FromLogs(records []models.RawRecord) Scope {
	serviceCounts := map[string]int{}
	envCounts := map[string]int{}
	regionCounts := map[string]int{}
	clusterCounts := map[string]int{}
	hostCounts := map[string]int{}

	for _, rec := range records {
		attrs := rec.Attributes
		if s, ok := attrs["service"].(string); ok && s != "" {
			serviceCounts[s]++
		}
		if h, ok := attrs["host"].(string); ok && h != "" {
			hostCounts[h]++
		}

		// Datadog logs often carry "ddtags" like "env:prod,service:api".
		dd, ok := attrs["ddtags"].(string)
		if !ok || dd == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(dd, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		tm := tagsToMap(parts)
		if v := tm["env"]; v != "" {
			envCounts[v]++
		}
		if v := tm["region"]; v != "" {
			regionCounts[v]++
		}
		if v := tm["cluster"]; v != "" {
			clusterCounts[v]++
		}
	}

	return Scope{
		Service: topValue(serviceCounts),
		Env:     topValue(envCounts),
		Region:  topValue(regionCounts),
		Cluster: topValue(clusterCounts),
		Hosts:   topValues(hostCounts, 5),
	}
}

// EventTagQuery renders the scope as the comma-separated tag filter the
// events API expects, empty when nothing is resolved.
func (s Scope) EventTagQuery() string {
	var tags []string
	if s.Service != "" {
		tags = append(tags, "service:"+s.Service)
	}
	if s.Env != "" {
		tags = append(tags, "env:"+s.Env)
	}
	if s.Region != "" {
		tags = append(tags, "region:"+s.Region)
	}
	if s.Cluster != "" {
		tags = append(tags, "cluster:"+s.Cluster)
	}
	return strings.Join(tags, ",")
}

// ToInfo renders the scope for reports. Unresolved fields become null; list
// and map fields always render.
func (s Scope) ToInfo() models.ScopeInfo {
	info := models.ScopeInfo{
		Service:     optional(s.Service),
		Environment: optional(s.Env),
		Region:      optional(s.Region),
		Cluster:     optional(s.Cluster),
		Hosts:       append([]string{}, s.Hosts...),
		Pods:        append([]string{}, s.Pods...),
		TagFilters:  map[string]string{},
	}
	for k, v := range s.Tags {
		info.TagFilters[k] = v
	}
	return info
}

func tagsToMap(tags []string) map[string]string {
	out := map[string]string{}
	for _, t := range tags {
		k, v, ok := strings.Cut(t, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		if _, exists := out[k]; exists {
			continue
		}
		out[k] = v
	}
	return out
}

func firstTag(tm map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := tm[k]; v != "" {
			return v
		}
	}
	return ""
}

func topValue(counts map[string]int) string {
	vals := topValues(counts, 1)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func topValues(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
