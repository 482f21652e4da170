package backend

import "sync"

// Memory is an in-process backend with no durability. It exists as the
// default when persistence is disabled and as the test double.
type Memory struct {
	mu    sync.Mutex
	metas map[string][]byte
	docs  map[string]map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{
		metas: make(map[string][]byte),
		docs:  make(map[string]map[string][]byte),
	}
}

func (m *Memory) PutIndexMeta(name string, meta []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metas[name] = append([]byte(nil), meta...)
	return nil
}

func (m *Memory) PutDocument(index, id string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.docs[index]
	if !ok {
		byID = make(map[string][]byte)
		m.docs[index] = byID
	}
	byID[id] = append([]byte(nil), doc...)
	return nil
}

func (m *Memory) DeleteDocument(index, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if byID, ok := m.docs[index]; ok {
		delete(byID, id)
	}
	return nil
}

func (m *Memory) DeleteIndex(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.metas, name)
	delete(m.docs, name)
	return nil
}

func (m *Memory) LoadAll() (map[string][]byte, map[string]map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metas := make(map[string][]byte, len(m.metas))
	for name, meta := range m.metas {
		metas[name] = append([]byte(nil), meta...)
	}
	docs := make(map[string]map[string][]byte, len(m.docs))
	for index, byID := range m.docs {
		copied := make(map[string][]byte, len(byID))
		for id, doc := range byID {
			copied[id] = append([]byte(nil), doc...)
		}
		docs[index] = copied
	}
	return metas, docs, nil
}

func (m *Memory) Flush() error { return nil }

func (m *Memory) Close() error { return nil }
