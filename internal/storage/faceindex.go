package storage

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"
)

// hnswMaxNeighbors controls graph connectivity. Rosters are small,
// so the default-ish value trades memory for recall.
const hnswMaxNeighbors = 16

// IndexMatch is one nearest-neighbor hit from the face index.
type IndexMatch struct {
	Student  Student
	Distance float64
}

// FaceIndex is an approximate nearest-neighbor index over student
// embeddings, used by identification tooling to answer "who is this
// face" across the whole school without a linear scan.
type FaceIndex struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[string]
	students map[string]Student
}

// NewFaceIndex creates an empty index.
func NewFaceIndex() *FaceIndex {
	return &FaceIndex{students: make(map[string]Student)}
}

// Build replaces the index content with the given students. Students
// without embeddings are ignored.
func (f *FaceIndex) Build(students []Student) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.students = make(map[string]Student, len(students))
	if len(students) == 0 {
		f.graph = nil
		return nil
	}

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	for _, s := range students {
		if !s.HasEmbedding() {
			continue
		}
		g.Add(hnsw.MakeNode(s.ID, s.Embedding))
		f.students[s.ID] = s
	}

	f.graph = g
	return nil
}

// Add inserts or replaces a single student.
func (f *FaceIndex) Add(s Student) error {
	if !s.HasEmbedding() {
		return errors.New("student has no embedding")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.graph == nil {
		g := hnsw.NewGraph[string]()
		g.M = hnswMaxNeighbors
		g.Ml = 1.0 / float64(hnswMaxNeighbors)
		g.Distance = hnsw.EuclideanDistance
		f.graph = g
	}

	f.graph.Add(hnsw.MakeNode(s.ID, s.Embedding))
	f.students[s.ID] = s
	return nil
}

// Search returns the k nearest students to the query embedding,
// closest first.
func (f *FaceIndex) Search(query []float32, k int) ([]IndexMatch, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.graph == nil {
		return nil, errors.New("index not initialized")
	}

	neighbors := f.graph.Search(query, k)
	matches := make([]IndexMatch, 0, len(neighbors))
	for _, n := range neighbors {
		s, ok := f.students[n.Key]
		if !ok {
			continue
		}
		matches = append(matches, IndexMatch{
			Student:  s,
			Distance: float64(hnsw.EuclideanDistance(query, n.Value)),
		})
	}
	return matches, nil
}

// Len returns the number of indexed students.
func (f *FaceIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.students)
}
