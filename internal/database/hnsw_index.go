package database

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// StudentIndexMetadata stores metadata for validating cached student indexes.
type StudentIndexMetadata struct {
	StudentCount int64     `json:"student_count"`
	LastUpdated  time.Time `json:"last_updated"`
	BuildTime    time.Time `json:"build_time"`
	Version      int       `json:"version"` // For future compatibility
}

const studentIndexMetadataVersion = 1

// StudentIndex wraps the HNSW graph for student template search.
// Nodes are keyed by student ID.
type StudentIndex struct {
	graph       *hnsw.Graph[string]
	savedGraph  *hnsw.SavedGraph[string] // For persistence
	idToStudent map[string]*Student
	mu          sync.RWMutex
	path        string // Path to save/load index
}

// NewStudentIndex creates a new empty student index.
func NewStudentIndex() *StudentIndex {
	return &StudentIndex{
		idToStudent: make(map[string]*Student),
	}
}

// BuildFromStudents builds the index from a slice of students.
// Students without a face template are skipped.
func (h *StudentIndex) BuildFromStudents(students []Student) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(students) == 0 {
		h.graph = nil
		h.savedGraph = nil
		h.idToStudent = make(map[string]*Student)
		return nil
	}

	// Create new graph with cosine distance.
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	h.idToStudent = make(map[string]*Student, len(students))

	// Add all students to the graph.
	for i := range students {
		student := &students[i]
		if len(student.Embedding) == 0 {
			continue
		}

		g.Add(hnsw.MakeNode(student.StudentID, student.Embedding))
		h.idToStudent[student.StudentID] = student
	}

	h.graph = g
	return nil
}

// Search finds the k nearest enrolled students to the query embedding.
// Returns student IDs and their cosine distances.
func (h *StudentIndex) Search(query []float32, k int) ([]string, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	var neighbors []hnsw.Node[string]
	if h.savedGraph != nil {
		neighbors = h.savedGraph.Search(query, k)
	} else {
		neighbors = h.graph.Search(query, k)
	}

	ids := make([]string, 0, len(neighbors))
	distances := make([]float64, 0, len(neighbors))

	// Re-enrollment adds a fresh node under the same key, so the graph can
	// return a student twice. Keep the first hit and compute the distance
	// against the current template.
	seen := make(map[string]bool, len(neighbors))
	for _, n := range neighbors {
		if seen[n.Key] {
			continue
		}
		student, ok := h.idToStudent[n.Key]
		if !ok || len(student.Embedding) == 0 {
			continue
		}
		seen[n.Key] = true
		ids = append(ids, n.Key)
		distances = append(distances, CosineDistance(query, student.Embedding))
	}

	return ids, distances, nil
}

// GetStudent returns the indexed student for a given ID.
func (h *StudentIndex) GetStudent(studentID string) *Student {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToStudent[studentID]
}

// Add adds a single student to the index. Students without a template are ignored.
func (h *StudentIndex) Add(student *Student) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(student.Embedding) == 0 {
		return nil
	}

	if h.graph == nil {
		// Create new graph.
		h.graph = hnsw.NewGraph[string]()
		h.graph.M = HNSWMaxNeighbors
		h.graph.Ml = 1.0 / float64(HNSWMaxNeighbors)
		h.graph.Distance = hnsw.CosineDistance
	}

	h.graph.Add(hnsw.MakeNode(student.StudentID, student.Embedding))
	h.idToStudent[student.StudentID] = student

	return nil
}

// Delete removes a student from the index (marks as deleted).
func (h *StudentIndex) Delete(studentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.idToStudent, studentID)
	// The HNSW graph keeps the node, but removing the map entry hides it
	// from search results since results are filtered by lookup.
}

// Count returns the number of indexed students.
func (h *StudentIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToStudent)
}

// IsEmpty returns true if the index has no graph data loaded.
// Note: idToStudent is populated separately by RebuildFromStudents after loading.
func (h *StudentIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil && h.savedGraph == nil
}

// RebuildFromStudents rebuilds the idToStudent map from students.
// Called after loading the graph from disk.
func (h *StudentIndex) RebuildFromStudents(students []Student) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.idToStudent = make(map[string]*Student, len(students))
	for i := range students {
		if len(students[i].Embedding) == 0 {
			continue
		}
		h.idToStudent[students[i].StudentID] = &students[i]
	}
}

// LoadStudentIndexMetadata loads metadata from a separate .meta file.
func LoadStudentIndexMetadata(path string) (StudentIndexMetadata, error) {
	var metadata StudentIndexMetadata

	metaPath := path + ".meta"
	data, err := os.ReadFile(metaPath) //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}

	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return metadata, nil
}

// exportGraph exports the HNSW graph to the given file path.
func (h *StudentIndex) exportGraph(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create student index file: %w", err)
	}
	if h.savedGraph != nil {
		if err := h.savedGraph.Export(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to export HNSW graph from savedGraph: %w", err)
		}
	} else {
		if err := h.graph.Export(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to export HNSW graph: %w", err)
		}
	}
	return f.Close()
}

// SaveWithMetadata persists the graph, metadata, and student data to disk.
func (h *StudentIndex) SaveWithMetadata(path string, metadata StudentIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		_ = os.Remove(path + ".students")
		return nil
	}

	if err := h.exportGraph(path); err != nil {
		return err
	}

	metadata.Version = studentIndexMetadataVersion
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	// Save student data for fast startup.
	students := make([]Student, 0, len(h.idToStudent))
	for _, student := range h.idToStudent {
		students = append(students, *student)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(students); err != nil {
		return fmt.Errorf("failed to encode students: %w", err)
	}
	if err := os.WriteFile(path+".students", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write students file: %w", err)
	}

	return nil
}

// LoadWithStudents loads the HNSW graph and student data from disk.
func (h *StudentIndex) LoadWithStudents(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("student index file not found: %s", path)
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return fmt.Errorf("failed to load student index: %w", err)
	}

	data, err := os.ReadFile(path + ".students") //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read students file: %w", err)
	}

	var students []Student
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&students); err != nil {
		return fmt.Errorf("failed to decode students: %w", err)
	}

	h.savedGraph = saved
	h.idToStudent = make(map[string]*Student, len(students))
	for i := range students {
		h.idToStudent[students[i].StudentID] = &students[i]
	}

	return nil
}
