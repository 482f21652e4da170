package storage

import (
	"encoding/json"
	"sort"
)

// IndexStats summarizes one index for stats and cat endpoints.
type IndexStats struct {
	Name        string
	DocCount    int
	SizeInBytes int64
}

// IndicesStats returns per-index document counts and an estimated store
// size, sorted by index name. Size is the sum of encoded document bodies,
// not on-disk bytes.
func (s *Storage) IndicesStats() []IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]IndexStats, 0, len(s.indices))
	for name, idx := range s.indices {
		entry := IndexStats{Name: name, DocCount: idx.docCount()}
		for _, doc := range idx.docs {
			if raw, err := json.Marshal(doc.Body); err == nil {
				entry.SizeInBytes += int64(len(raw))
			}
		}
		stats = append(stats, entry)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// ClusterHealth reports a static healthy single-node cluster.
func (s *Storage) ClusterHealth(clusterName string) map[string]any {
	s.mu.RLock()
	indices := len(s.indices)
	s.mu.RUnlock()

	return map[string]any{
		"cluster_name":                     clusterName,
		"status":                           "green",
		"timed_out":                        false,
		"number_of_nodes":                  1,
		"number_of_data_nodes":             1,
		"active_primary_shards":            indices,
		"active_shards":                    indices,
		"relocating_shards":                0,
		"initializing_shards":              0,
		"unassigned_shards":                0,
		"delayed_unassigned_shards":        0,
		"number_of_pending_tasks":          0,
		"number_of_in_flight_fetch":        0,
		"task_max_waiting_in_queue_millis": 0,
		"active_shards_percent_as_number":  100.0,
	}
}

// ClusterStats synthesizes the cluster stats body for a single-node setup.
func (s *Storage) ClusterStats(clusterName, esVersion string) map[string]any {
	stats := s.IndicesStats()

	totalDocs := 0
	var totalSize int64
	for _, entry := range stats {
		totalDocs += entry.DocCount
		totalSize += entry.SizeInBytes
	}

	return map[string]any{
		"cluster_name": clusterName,
		"status":       "green",
		"indices": map[string]any{
			"count": len(stats),
			"shards": map[string]any{
				"total":       len(stats),
				"primaries":   len(stats),
				"replication": 0.0,
			},
			"docs": map[string]any{
				"count":   totalDocs,
				"deleted": 0,
			},
			"store": map[string]any{
				"size_in_bytes": totalSize,
			},
		},
		"nodes": map[string]any{
			"count": map[string]any{
				"total":  1,
				"data":   1,
				"master": 1,
				"ingest": 1,
			},
			"versions": []string{esVersion},
		},
	}
}
