package engine

// IndexUIDs implements metrics.StatsSource.
func (e *Engine) IndexUIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	uids := make([]string, 0, len(e.indexes))
	for uid := range e.indexes {
		uids = append(uids, uid)
	}
	return uids
}

// DocumentCount implements metrics.StatsSource.
func (e *Engine) DocumentCount(indexUID string) (int64, error) {
	idx, ok := e.indexByUID(indexUID)
	if !ok {
		return 0, nil
	}
	return idx.NumberOfDocuments()
}

// IndexSizeBytes implements metrics.StatsSource.
func (e *Engine) IndexSizeBytes(indexUID string) (int64, error) {
	idx, ok := e.indexByUID(indexUID)
	if !ok {
		return 0, nil
	}
	return idx.SizeBytes()
}

// TaskCountsByStatus implements metrics.StatsSource.
func (e *Engine) TaskCountsByStatus() (map[string]int64, error) {
	return e.queue.CountsByStatus()
}
