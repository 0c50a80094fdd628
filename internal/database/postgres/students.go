package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/pgvector/pgvector-go"
)

// StudentRepository provides PostgreSQL-backed student storage with an
// optional in-memory HNSW index for lookalike search.
type StudentRepository struct {
	pool          *Pool
	hnswIndex     *database.StudentIndex
	hnswEnabled   bool
	hnswIndexPath string // Path to persist HNSW index (optional)
	hnswMu        sync.RWMutex
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// Get retrieves a student by ID, returns nil if not found.
func (r *StudentRepository) Get(ctx context.Context, studentID string) (*database.Student, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT student_id, name, class, embedding, image_count, method, model, dim, last_checkin, created_at, updated_at
		FROM students
		WHERE student_id = $1
	`, studentID)

	student, err := scanStudentRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}

// Has checks if a student exists.
func (r *StudentRepository) Has(ctx context.Context, studentID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM students WHERE student_id = $1)", studentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check student exists: %w", err)
	}
	return exists, nil
}

// Count returns the total number of students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM students").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// CountEnrolled returns the number of students with a face template.
func (r *StudentRepository) CountEnrolled(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM students WHERE embedding IS NOT NULL").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count enrolled students: %w", err)
	}
	return count, nil
}

// List returns students matching the query and class filter.
// Names are compared after normalization (lowercase, no diacritics, dashes to
// spaces), so "novak" matches "Jan Novák". Student IDs match as substrings.
func (r *StudentRepository) List(ctx context.Context, query, class string, limit, offset int) ([]database.Student, error) {
	normalized := database.NormalizeName(query)

	rows, err := r.pool.Query(ctx, `
		SELECT student_id, name, class, embedding, image_count, method, model, dim, last_checkin, created_at, updated_at
		FROM students
		WHERE ($1 = ''
			OR LOWER(REPLACE(unaccent(name), '-', ' ')) LIKE '%' || $1 || '%'
			OR LOWER(student_id) LIKE '%' || $1 || '%')
		  AND ($2 = '' OR class = $2)
		ORDER BY student_id
		LIMIT $3 OFFSET $4
	`, normalized, class, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// ListForMatching returns all students with a face template, ordered by
// student ID so score ties resolve deterministically.
func (r *StudentRepository) ListForMatching(ctx context.Context) ([]database.Student, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT student_id, name, class, embedding, image_count, method, model, dim, last_checkin, created_at, updated_at
		FROM students
		WHERE embedding IS NOT NULL
		ORDER BY student_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query students for matching: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// FindSimilar finds students whose templates are closest to the embedding.
// Uses the in-memory HNSW index if enabled, otherwise falls back to PostgreSQL.
func (r *StudentRepository) FindSimilar(
	ctx context.Context, embedding []float32, limit int,
) ([]database.Student, []float64, error) {
	r.hnswMu.RLock()
	hnswEnabled := r.hnswEnabled && r.hnswIndex != nil
	r.hnswMu.RUnlock()

	if hnswEnabled {
		return r.findSimilarHNSW(embedding, limit)
	}

	return r.findSimilarPostgres(ctx, embedding, limit)
}

// findSimilarHNSW uses the in-memory HNSW index for similarity search.
func (r *StudentRepository) findSimilarHNSW(embedding []float32, limit int) ([]database.Student, []float64, error) {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndex == nil {
		return nil, nil, errors.New("HNSW index not initialized")
	}

	ids, distances, err := r.hnswIndex.Search(embedding, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("HNSW search: %w", err)
	}

	students := make([]database.Student, 0, len(ids))
	distancesOut := make([]float64, 0, len(ids))
	for i, id := range ids {
		student := r.hnswIndex.GetStudent(id)
		if student == nil {
			continue
		}
		students = append(students, *student)
		distancesOut = append(distancesOut, distances[i])
	}

	return students, distancesOut, nil
}

// findSimilarPostgres uses PostgreSQL for similarity search with ef_search optimization.
func (r *StudentRepository) findSimilarPostgres(
	ctx context.Context, embedding []float32, limit int,
) ([]database.Student, []float64, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Set ef_search to match the in-memory HNSW configuration.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, nil, fmt.Errorf("set ef_search: %w", err)
	}

	vec := pgvector.NewVector(embedding)
	rows, err := tx.QueryContext(ctx, `
		SELECT student_id, name, class, embedding, image_count, method, model, dim, last_checkin, created_at, updated_at,
		       embedding <=> $1::vector AS distance
		FROM students
		WHERE embedding IS NOT NULL
		ORDER BY distance
		LIMIT $2
	`, vec, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar students: %w", err)
	}
	defer rows.Close()

	var students []database.Student
	var distances []float64

	for rows.Next() {
		var dist float64
		student, err := scanStudentRow(rows, &dist)
		if err != nil {
			return nil, nil, err
		}
		students = append(students, student)
		distances = append(distances, dist)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate students: %w", err)
	}

	return students, distances, nil
}

// Save stores a student (upsert by student ID). An existing last check-in
// time is preserved on update.
func (r *StudentRepository) Save(ctx context.Context, student *database.Student) error {
	var vec any
	if len(student.Embedding) > 0 {
		vec = pgvector.NewVector(student.Embedding)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO students (student_id, name, class, embedding, image_count, method, model, dim, created_at, updated_at)
		VALUES ($1, $2, $3, $4::vector, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (student_id) DO UPDATE SET
			name = EXCLUDED.name,
			class = EXCLUDED.class,
			embedding = EXCLUDED.embedding,
			image_count = EXCLUDED.image_count,
			method = EXCLUDED.method,
			model = EXCLUDED.model,
			dim = EXCLUDED.dim,
			updated_at = NOW()
	`,
		student.StudentID,
		student.Name,
		student.Class,
		vec,
		student.ImageCount,
		student.Method,
		student.Model,
		student.Dim,
	)
	if err != nil {
		return fmt.Errorf("save student %s: %w", student.StudentID, err)
	}

	r.updateHNSWStudent(student)
	return nil
}

// UpdateProfile updates name and class without touching the face template.
func (r *StudentRepository) UpdateProfile(ctx context.Context, studentID, name, class string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE students SET name = $1, class = $2, updated_at = NOW() WHERE student_id = $3
	`, name, class, studentID)
	if err != nil {
		return fmt.Errorf("update student profile: %w", err)
	}

	r.refreshHNSWStudent(ctx, studentID)
	return nil
}

// UpdateEmbedding replaces the student's face template.
func (r *StudentRepository) UpdateEmbedding(
	ctx context.Context, studentID string, embedding []float32, imageCount int, method, model string, dim int,
) error {
	vec := pgvector.NewVector(embedding)

	_, err := r.pool.Exec(ctx, `
		UPDATE students SET embedding = $1::vector, image_count = $2, method = $3, model = $4, dim = $5, updated_at = NOW()
		WHERE student_id = $6
	`, vec, imageCount, method, model, dim, studentID)
	if err != nil {
		return fmt.Errorf("update student embedding: %w", err)
	}

	r.refreshHNSWStudent(ctx, studentID)
	return nil
}

// UpdateLastCheckin records the time of the latest successful check-in.
func (r *StudentRepository) UpdateLastCheckin(ctx context.Context, studentID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE students SET last_checkin = $1 WHERE student_id = $2
	`, at, studentID)
	if err != nil {
		return fmt.Errorf("update last checkin: %w", err)
	}
	return nil
}

// Delete removes a student. Attendance records keep their snapshot of the
// student's name and class; the foreign key is cleared by the schema.
func (r *StudentRepository) Delete(ctx context.Context, studentID string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM students WHERE student_id = $1", studentID)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}

	r.hnswMu.Lock()
	if r.hnswEnabled && r.hnswIndex != nil {
		r.hnswIndex.Delete(studentID)
	}
	r.hnswMu.Unlock()
	return nil
}

// updateHNSWStudent syncs a saved student into the in-memory index.
func (r *StudentRepository) updateHNSWStudent(student *database.Student) {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()

	if !r.hnswEnabled || r.hnswIndex == nil {
		return
	}
	if student.Enrolled() {
		_ = r.hnswIndex.Add(student)
	} else {
		r.hnswIndex.Delete(student.StudentID)
	}
}

// refreshHNSWStudent reloads a student from the database into the index.
func (r *StudentRepository) refreshHNSWStudent(ctx context.Context, studentID string) {
	r.hnswMu.RLock()
	enabled := r.hnswEnabled && r.hnswIndex != nil
	r.hnswMu.RUnlock()
	if !enabled {
		return
	}

	student, err := r.Get(ctx, studentID)
	if err != nil || student == nil {
		return
	}
	r.updateHNSWStudent(student)
}

// tryLoadStudentIndex attempts to load the student index from disk.
// Returns true if the index was loaded and matches the database state.
func (r *StudentRepository) tryLoadStudentIndex(indexPath string, dbCount int64, dbLastUpdated time.Time) bool {
	metadata, err := database.LoadStudentIndexMetadata(indexPath)
	if err != nil {
		fmt.Printf("Student index: metadata file error: %v (will rebuild)\n", err)
		return false
	}
	if metadata.StudentCount != dbCount || !metadata.LastUpdated.Equal(dbLastUpdated) {
		fmt.Printf("Student index: stale (db: count=%d updated=%s, cached: count=%d updated=%s) (will rebuild)\n",
			dbCount, dbLastUpdated.Format(time.RFC3339),
			metadata.StudentCount, metadata.LastUpdated.Format(time.RFC3339))
		return false
	}

	idx := database.NewStudentIndex()
	if err := idx.LoadWithStudents(indexPath); err != nil {
		fmt.Printf("Student index: failed to load: %v (will rebuild)\n", err)
		return false
	}
	if idx.IsEmpty() {
		fmt.Printf("Student index: loaded graph is empty (will rebuild)\n")
		return false
	}

	r.hnswIndex = idx
	fmt.Printf("Student index: loaded from disk (fresh)\n")
	return true
}

// EnableHNSW loads or builds an in-memory HNSW index for lookalike search.
// If indexPath is provided, it will try to load from disk first and save after building.
// This should be called once at startup.
func (r *StudentRepository) EnableHNSW(ctx context.Context, indexPath string) error {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()

	r.hnswIndexPath = indexPath

	var dbCount int64
	var dbLastUpdated sql.NullTime
	err := r.pool.QueryRow(
		ctx, "SELECT COUNT(*), MAX(updated_at) FROM students WHERE embedding IS NOT NULL",
	).Scan(&dbCount, &dbLastUpdated)
	if err != nil {
		return fmt.Errorf("failed to get student stats: %w", err)
	}

	if indexPath != "" && r.tryLoadStudentIndex(indexPath, dbCount, dbLastUpdated.Time) {
		r.hnswEnabled = true
		return nil
	}

	students, err := r.ListForMatching(ctx)
	if err != nil {
		return fmt.Errorf("failed to load students: %w", err)
	}

	r.hnswIndex = database.NewStudentIndex()
	if err := r.hnswIndex.BuildFromStudents(students); err != nil {
		return fmt.Errorf("failed to build HNSW index: %w", err)
	}

	if indexPath != "" && len(students) > 0 {
		metadata := database.StudentIndexMetadata{
			StudentCount: dbCount,
			LastUpdated:  dbLastUpdated.Time,
			BuildTime:    time.Now(),
		}
		if err := r.hnswIndex.SaveWithMetadata(indexPath, metadata); err != nil {
			fmt.Printf("Warning: failed to save student index to disk: %v\n", err)
		}
	}

	r.hnswEnabled = true
	return nil
}

// DisableHNSW disables the in-memory HNSW index, falling back to PostgreSQL queries.
func (r *StudentRepository) DisableHNSW() {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()
	r.hnswEnabled = false
	r.hnswIndex = nil
}

// IsHNSWEnabled returns whether the in-memory HNSW index is enabled.
func (r *StudentRepository) IsHNSWEnabled() bool {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	return r.hnswEnabled && r.hnswIndex != nil
}

// HNSWCount returns the number of students in the HNSW index.
func (r *StudentRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}

// RebuildHNSW rebuilds the HNSW index from PostgreSQL data.
func (r *StudentRepository) RebuildHNSW(ctx context.Context) error {
	r.hnswMu.RLock()
	indexPath := r.hnswIndexPath
	r.hnswMu.RUnlock()
	return r.EnableHNSW(ctx, indexPath)
}

// SaveHNSWIndex saves the current HNSW index to disk (if path configured).
func (r *StudentRepository) SaveHNSWIndex() error {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndexPath == "" {
		return nil // No path configured, nothing to save
	}
	if r.hnswIndex == nil {
		return nil // No index to save
	}

	ctx := context.Background()
	var dbCount int64
	var dbLastUpdated sql.NullTime
	err := r.pool.QueryRow(
		ctx, "SELECT COUNT(*), MAX(updated_at) FROM students WHERE embedding IS NOT NULL",
	).Scan(&dbCount, &dbLastUpdated)
	if err != nil {
		return fmt.Errorf("failed to get student stats: %w", err)
	}

	metadata := database.StudentIndexMetadata{
		StudentCount: dbCount,
		LastUpdated:  dbLastUpdated.Time,
		BuildTime:    time.Now(),
	}

	if err := r.hnswIndex.SaveWithMetadata(r.hnswIndexPath, metadata); err != nil {
		return fmt.Errorf("saving student index: %w", err)
	}
	return nil
}

// scanStudentRow scans a single row into a Student, with optional extra scan
// destinations appended after the standard columns (e.g., a distance column).
func scanStudentRow(scanner interface{ Scan(...any) error }, extraDest ...any) (database.Student, error) {
	var student database.Student
	var vec sql.Null[pgvector.Vector]
	var lastCheckin sql.NullTime

	dest := make([]any, 0, 11+len(extraDest))
	dest = append(dest,
		&student.StudentID,
		&student.Name,
		&student.Class,
		&vec,
		&student.ImageCount,
		&student.Method,
		&student.Model,
		&student.Dim,
		&lastCheckin,
		&student.CreatedAt,
		&student.UpdatedAt,
	)
	dest = append(dest, extraDest...)

	if err := scanner.Scan(dest...); err != nil {
		return student, fmt.Errorf("scan student: %w", err)
	}

	if vec.Valid {
		student.Embedding = vec.V.Slice()
	}
	if lastCheckin.Valid {
		t := lastCheckin.Time
		student.LastCheckin = &t
	}

	return student, nil
}

func scanStudents(rows *sql.Rows) ([]database.Student, error) {
	var students []database.Student
	for rows.Next() {
		student, err := scanStudentRow(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// Verify interface compliance.
var _ database.StudentReader = (*StudentRepository)(nil)
var _ database.StudentWriter = (*StudentRepository)(nil)
