package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/database/mock"
)

func TestStudentsHandler_Create_Success(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	students := mock.NewMockStudentWriter()
	handler := newStudentsHandler(server, students)

	img := testJPEG(t)
	req := multipartRequest(t, "POST", "/api/v1/students",
		map[string]string{"student_id": "s001", "name": "Alice Novak", "class": "4A"},
		"images", img, img, img)
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var result EnrollmentResponse
	parseJSONResponse(t, recorder, &result)

	if result.Student.StudentID != "s001" {
		t.Errorf("expected student_id 's001', got '%s'", result.Student.StudentID)
	}
	if !result.Student.Enrolled {
		t.Error("expected student to be enrolled")
	}
	if result.ImagesReceived != 3 || result.ImagesUsed != 3 || result.ImagesDiscarded != 0 {
		t.Errorf("expected 3/3/0 images, got %d/%d/%d",
			result.ImagesReceived, result.ImagesUsed, result.ImagesDiscarded)
	}
	if result.Method != "mean" {
		t.Errorf("expected method 'mean', got '%s'", result.Method)
	}
	if result.DuplicateWarning != nil {
		t.Errorf("expected no duplicate warning, got %+v", result.DuplicateWarning)
	}

	if len(students.SaveCalls) != 1 {
		t.Fatalf("expected 1 save call, got %d", len(students.SaveCalls))
	}
	saved := students.SaveCalls[0]
	if saved.StudentID != "s001" || saved.Name != "Alice Novak" || saved.Class != "4A" {
		t.Errorf("unexpected saved student: %+v", saved)
	}
	if saved.ImageCount != 3 || saved.Method != "mean" || saved.Model != "facenet" || saved.Dim != 4 {
		t.Errorf("unexpected template metadata: %+v", saved)
	}
	if len(saved.Embedding) != 4 || saved.Embedding[0] < 0.99 {
		t.Errorf("expected template close to [1 0 0 0], got %v", saved.Embedding)
	}
}

func TestStudentsHandler_Create_SkipsImagesWithoutFace(t *testing.T) {
	server := newEmbeddingServer(t,
		embedResponse{embedding: []float32{1, 0, 0, 0}},
		embedResponse{noFace: true},
		embedResponse{embedding: []float32{1, 0, 0, 0}},
	)
	students := mock.NewMockStudentWriter()
	handler := newStudentsHandler(server, students)

	img := testJPEG(t)
	req := multipartRequest(t, "POST", "/api/v1/students",
		map[string]string{"student_id": "s001", "name": "Alice Novak"},
		"images", img, img, img)
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var result EnrollmentResponse
	parseJSONResponse(t, recorder, &result)

	if result.ImagesUsed != 2 || result.ImagesDiscarded != 1 {
		t.Errorf("expected 2 used / 1 discarded, got %d/%d", result.ImagesUsed, result.ImagesDiscarded)
	}
}

func TestStudentsHandler_Create_FiltersOutlierCapture(t *testing.T) {
	// Two consistent captures and one pointing the opposite way; the
	// outlier must not make it into the template.
	server := newEmbeddingServer(t,
		embedResponse{embedding: []float32{1, 0, 0, 0}},
		embedResponse{embedding: []float32{1, 0, 0, 0}},
		embedResponse{embedding: []float32{-1, 0, 0, 0}},
	)
	students := mock.NewMockStudentWriter()
	handler := newStudentsHandler(server, students)

	img := testJPEG(t)
	req := multipartRequest(t, "POST", "/api/v1/students",
		map[string]string{"student_id": "s001", "name": "Alice Novak"},
		"images", img, img, img)
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var result EnrollmentResponse
	parseJSONResponse(t, recorder, &result)

	if result.ImagesUsed != 2 || result.ImagesDiscarded != 1 {
		t.Errorf("expected 2 used / 1 discarded, got %d/%d", result.ImagesUsed, result.ImagesDiscarded)
	}
	if len(students.SaveCalls) != 1 {
		t.Fatalf("expected 1 save call, got %d", len(students.SaveCalls))
	}
	if emb := students.SaveCalls[0].Embedding; emb[0] < 0.99 {
		t.Errorf("expected template close to [1 0 0 0], got %v", emb)
	}
}

func TestStudentsHandler_Create_MissingFields(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	handler := newStudentsHandler(server, mock.NewMockStudentWriter())

	req := multipartRequest(t, "POST", "/api/v1/students",
		map[string]string{"name": "Alice Novak"},
		"images", testJPEG(t))
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "student_id and name are required")
}

func TestStudentsHandler_Create_NoImages(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	handler := newStudentsHandler(server, mock.NewMockStudentWriter())

	req := multipartRequest(t, "POST", "/api/v1/students",
		map[string]string{"student_id": "s001", "name": "Alice Novak"},
		"images")
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "at least one image is required")
}

func TestStudentsHandler_Create_AlreadyExists(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	students := mock.NewMockStudentWriter()
	students.AddStudent(database.Student{StudentID: "s001", Name: "Alice Novak"})
	handler := newStudentsHandler(server, students)

	req := multipartRequest(t, "POST", "/api/v1/students",
		map[string]string{"student_id": "s001", "name": "Alice Novak"},
		"images", testJPEG(t))
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusConflict)
	assertJSONError(t, recorder, "student already exists")
}

func TestStudentsHandler_Create_NoFaceInAnyImage(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{noFace: true})
	handler := newStudentsHandler(server, mock.NewMockStudentWriter())

	img := testJPEG(t)
	req := multipartRequest(t, "POST", "/api/v1/students",
		map[string]string{"student_id": "s001", "name": "Alice Novak"},
		"images", img, img)
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
	assertJSONError(t, recorder, "no face detected in any image")
}

func TestStudentsHandler_Create_EmbeddingServiceDown(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{status: http.StatusInternalServerError})
	handler := newStudentsHandler(server, mock.NewMockStudentWriter())

	req := multipartRequest(t, "POST", "/api/v1/students",
		map[string]string{"student_id": "s001", "name": "Alice Novak"},
		"images", testJPEG(t))
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadGateway)
	assertJSONError(t, recorder, "embedding service unavailable")
}

func TestStudentsHandler_Create_WrongDimension(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0}})
	handler := newStudentsHandler(server, mock.NewMockStudentWriter())

	req := multipartRequest(t, "POST", "/api/v1/students",
		map[string]string{"student_id": "s001", "name": "Alice Novak"},
		"images", testJPEG(t))
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadGateway)
	assertJSONError(t, recorder, "embedding service returned dimension 3, expected 4")
}

func TestStudentsHandler_Create_InvalidImage(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	handler := newStudentsHandler(server, mock.NewMockStudentWriter())

	req := multipartRequest(t, "POST", "/api/v1/students",
		map[string]string{"student_id": "s001", "name": "Alice Novak"},
		"images", []byte("definitely not an image"))
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "invalid image capture0.jpg")
}

func TestStudentsHandler_Create_UnknownMethod(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	handler := newStudentsHandler(server, mock.NewMockStudentWriter())

	req := multipartRequest(t, "POST", "/api/v1/students",
		map[string]string{"student_id": "s001", "name": "Alice Novak", "method": "mode"},
		"images", testJPEG(t))
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, `unknown aggregation method "mode"`)
}

func TestStudentsHandler_Create_DuplicateWarning(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	students := mock.NewMockStudentWriter()
	students.AddStudent(database.Student{
		StudentID: "s900",
		Name:      "Bob Dvorak",
		Embedding: []float32{1, 0, 0, 0},
	})
	handler := newStudentsHandler(server, students)

	req := multipartRequest(t, "POST", "/api/v1/students",
		map[string]string{"student_id": "s001", "name": "Alice Novak"},
		"images", testJPEG(t))
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var result EnrollmentResponse
	parseJSONResponse(t, recorder, &result)

	if result.DuplicateWarning == nil {
		t.Fatal("expected a duplicate warning")
	}
	if result.DuplicateWarning.StudentID != "s900" {
		t.Errorf("expected warning about 's900', got '%s'", result.DuplicateWarning.StudentID)
	}
	if result.DuplicateWarning.Similarity < 0.99 {
		t.Errorf("expected similarity close to 1, got %f", result.DuplicateWarning.Similarity)
	}
}

func TestStudentsHandler_Create_SaveError(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	students := mock.NewMockStudentWriter()
	students.SaveError = errors.New("disk full")
	handler := newStudentsHandler(server, students)

	req := multipartRequest(t, "POST", "/api/v1/students",
		map[string]string{"student_id": "s001", "name": "Alice Novak"},
		"images", testJPEG(t))
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "failed to save student")
}

func TestStudentsHandler_List_Success(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	students := mock.NewMockStudentWriter()
	students.AddStudent(database.Student{StudentID: "s002", Name: "Bob Dvorak", Class: "4B"})
	students.AddStudent(database.Student{StudentID: "s001", Name: "Alice Novak", Class: "4A"})
	handler := newStudentsHandler(server, students)

	req := httptest.NewRequest("GET", "/api/v1/students", nil)
	recorder := httptest.NewRecorder()

	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result []StudentResponse
	parseJSONResponse(t, recorder, &result)

	if len(result) != 2 {
		t.Fatalf("expected 2 students, got %d", len(result))
	}
	if result[0].StudentID != "s001" || result[1].StudentID != "s002" {
		t.Errorf("expected students ordered by ID, got %s, %s", result[0].StudentID, result[1].StudentID)
	}
	if result[0].Enrolled {
		t.Error("expected student without template to report enrolled=false")
	}
}

func TestStudentsHandler_List_FiltersByQueryAndClass(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	students := mock.NewMockStudentWriter()
	students.AddStudent(database.Student{StudentID: "s001", Name: "Alice Novak", Class: "4A"})
	students.AddStudent(database.Student{StudentID: "s002", Name: "Bob Dvorak", Class: "4B"})
	handler := newStudentsHandler(server, students)

	req := httptest.NewRequest("GET", "/api/v1/students?q=alice&class=4A", nil)
	recorder := httptest.NewRecorder()

	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result []StudentResponse
	parseJSONResponse(t, recorder, &result)

	if len(result) != 1 || result[0].StudentID != "s001" {
		t.Errorf("expected only s001, got %+v", result)
	}
}

func TestStudentsHandler_List_StoreError(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	students := mock.NewMockStudentWriter()
	students.ListError = errors.New("connection refused")
	handler := newStudentsHandler(server, students)

	req := httptest.NewRequest("GET", "/api/v1/students", nil)
	recorder := httptest.NewRecorder()

	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "failed to list students")
}

func TestStudentsHandler_Get_Success(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	students := mock.NewMockStudentWriter()
	students.AddStudent(database.Student{
		StudentID: "s001",
		Name:      "Alice Novak",
		Class:     "4A",
		Embedding: []float32{1, 0, 0, 0},
		Method:    "mean",
	})
	handler := newStudentsHandler(server, students)

	req := httptest.NewRequest("GET", "/api/v1/students/s001", nil)
	req = requestWithChiParams(req, map[string]string{"studentID": "s001"})
	recorder := httptest.NewRecorder()

	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result StudentResponse
	parseJSONResponse(t, recorder, &result)

	if result.StudentID != "s001" || result.Name != "Alice Novak" {
		t.Errorf("unexpected student: %+v", result)
	}
	if !result.Enrolled || result.Method != "mean" {
		t.Errorf("expected enrolled student with method 'mean', got %+v", result)
	}
}

func TestStudentsHandler_Get_NotFound(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	handler := newStudentsHandler(server, mock.NewMockStudentWriter())

	req := httptest.NewRequest("GET", "/api/v1/students/missing", nil)
	req = requestWithChiParams(req, map[string]string{"studentID": "missing"})
	recorder := httptest.NewRecorder()

	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "student not found")
}

func TestStudentsHandler_Get_MissingID(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	handler := newStudentsHandler(server, mock.NewMockStudentWriter())

	req := httptest.NewRequest("GET", "/api/v1/students/", nil)
	recorder := httptest.NewRecorder()

	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestStudentsHandler_Update_Success(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	students := mock.NewMockStudentWriter()
	students.AddStudent(database.Student{StudentID: "s001", Name: "Alice Novak", Class: "4A"})
	handler := newStudentsHandler(server, students)

	body := bytes.NewBufferString(`{"name": "Alice Svoboda"}`)
	req := httptest.NewRequest("PUT", "/api/v1/students/s001", body)
	req = requestWithChiParams(req, map[string]string{"studentID": "s001"})
	recorder := httptest.NewRecorder()

	handler.Update(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result StudentResponse
	parseJSONResponse(t, recorder, &result)

	if result.Name != "Alice Svoboda" {
		t.Errorf("expected updated name, got '%s'", result.Name)
	}
	if result.Class != "4A" {
		t.Errorf("expected class to be preserved, got '%s'", result.Class)
	}

	if len(students.UpdateProfileCalls) != 1 {
		t.Fatalf("expected 1 update call, got %d", len(students.UpdateProfileCalls))
	}
	call := students.UpdateProfileCalls[0]
	if call.Name != "Alice Svoboda" || call.Class != "4A" {
		t.Errorf("unexpected update call: %+v", call)
	}
}

func TestStudentsHandler_Update_InvalidJSON(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	handler := newStudentsHandler(server, mock.NewMockStudentWriter())

	body := bytes.NewBufferString(`{invalid`)
	req := httptest.NewRequest("PUT", "/api/v1/students/s001", body)
	req = requestWithChiParams(req, map[string]string{"studentID": "s001"})
	recorder := httptest.NewRecorder()

	handler.Update(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "invalid request body")
}

func TestStudentsHandler_Update_EmptyName(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	students := mock.NewMockStudentWriter()
	students.AddStudent(database.Student{StudentID: "s001", Name: "Alice Novak"})
	handler := newStudentsHandler(server, students)

	body := bytes.NewBufferString(`{"name": "   "}`)
	req := httptest.NewRequest("PUT", "/api/v1/students/s001", body)
	req = requestWithChiParams(req, map[string]string{"studentID": "s001"})
	recorder := httptest.NewRecorder()

	handler.Update(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "name cannot be empty")
}

func TestStudentsHandler_Update_NotFound(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	handler := newStudentsHandler(server, mock.NewMockStudentWriter())

	body := bytes.NewBufferString(`{"name": "Alice"}`)
	req := httptest.NewRequest("PUT", "/api/v1/students/missing", body)
	req = requestWithChiParams(req, map[string]string{"studentID": "missing"})
	recorder := httptest.NewRecorder()

	handler.Update(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestStudentsHandler_Delete_Success(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	students := mock.NewMockStudentWriter()
	students.AddStudent(database.Student{StudentID: "s001", Name: "Alice Novak"})
	handler := newStudentsHandler(server, students)

	req := httptest.NewRequest("DELETE", "/api/v1/students/s001", nil)
	req = requestWithChiParams(req, map[string]string{"studentID": "s001"})
	recorder := httptest.NewRecorder()

	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	if len(students.DeleteCalls) != 1 || students.DeleteCalls[0] != "s001" {
		t.Errorf("expected delete call for s001, got %v", students.DeleteCalls)
	}
}

func TestStudentsHandler_Delete_NotFound(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	handler := newStudentsHandler(server, mock.NewMockStudentWriter())

	req := httptest.NewRequest("DELETE", "/api/v1/students/missing", nil)
	req = requestWithChiParams(req, map[string]string{"studentID": "missing"})
	recorder := httptest.NewRecorder()

	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestStudentsHandler_Similar_Success(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	students := mock.NewMockStudentWriter()
	students.AddStudent(database.Student{StudentID: "s001", Name: "Alice Novak", Embedding: []float32{1, 0, 0, 0}})
	students.AddStudent(database.Student{StudentID: "s002", Name: "Bob Dvorak", Embedding: []float32{1, 0, 0, 0}})
	students.AddStudent(database.Student{StudentID: "s003", Name: "Cyril Maly", Embedding: []float32{0, 1, 0, 0}})
	handler := newStudentsHandler(server, students)

	req := httptest.NewRequest("GET", "/api/v1/students/s001/similar", nil)
	req = requestWithChiParams(req, map[string]string{"studentID": "s001"})
	recorder := httptest.NewRecorder()

	handler.Similar(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result []SimilarStudent
	parseJSONResponse(t, recorder, &result)

	if len(result) != 2 {
		t.Fatalf("expected 2 results, got %d", len(result))
	}
	if result[0].StudentID != "s002" {
		t.Errorf("expected closest student 's002', got '%s'", result[0].StudentID)
	}
	if result[0].Similarity < 0.99 {
		t.Errorf("expected similarity close to 1, got %f", result[0].Similarity)
	}
	for _, r := range result {
		if r.StudentID == "s001" {
			t.Error("expected the student themselves to be excluded")
		}
	}
}

func TestStudentsHandler_Similar_NotEnrolled(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	students := mock.NewMockStudentWriter()
	students.AddStudent(database.Student{StudentID: "s001", Name: "Alice Novak"})
	handler := newStudentsHandler(server, students)

	req := httptest.NewRequest("GET", "/api/v1/students/s001/similar", nil)
	req = requestWithChiParams(req, map[string]string{"studentID": "s001"})
	recorder := httptest.NewRecorder()

	handler.Similar(recorder, req)

	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
	assertJSONError(t, recorder, "student has no face template")
}

func TestStudentsHandler_ReplacePhotos_Success(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{0, 1, 0, 0}})
	students := mock.NewMockStudentWriter()
	students.AddStudent(database.Student{
		StudentID: "s001",
		Name:      "Alice Novak",
		Embedding: []float32{1, 0, 0, 0},
		Method:    "mean",
	})
	handler := newStudentsHandler(server, students)

	img := testJPEG(t)
	req := multipartRequest(t, "POST", "/api/v1/students/s001/photos",
		map[string]string{"method": "median"},
		"images", img, img)
	req = requestWithChiParams(req, map[string]string{"studentID": "s001"})
	recorder := httptest.NewRecorder()

	handler.ReplacePhotos(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result EnrollmentResponse
	parseJSONResponse(t, recorder, &result)

	if result.Method != "median" {
		t.Errorf("expected method 'median', got '%s'", result.Method)
	}
	if result.ImagesUsed != 2 {
		t.Errorf("expected 2 images used, got %d", result.ImagesUsed)
	}

	if len(students.UpdateEmbeddingCalls) != 1 {
		t.Fatalf("expected 1 embedding update, got %d", len(students.UpdateEmbeddingCalls))
	}
	call := students.UpdateEmbeddingCalls[0]
	if call.StudentID != "s001" || call.Method != "median" || call.Dim != 4 {
		t.Errorf("unexpected embedding update: %+v", call)
	}
	// The old template pointed along the first axis, the new one must not.
	if call.Embedding[0] > 0.01 || call.Embedding[1] < 0.99 {
		t.Errorf("expected replaced template close to [0 1 0 0], got %v", call.Embedding)
	}
}

func TestStudentsHandler_ReplacePhotos_NotFound(t *testing.T) {
	server := newEmbeddingServer(t, embedResponse{embedding: []float32{1, 0, 0, 0}})
	handler := newStudentsHandler(server, mock.NewMockStudentWriter())

	req := multipartRequest(t, "POST", "/api/v1/students/missing/photos",
		nil, "images", testJPEG(t))
	req = requestWithChiParams(req, map[string]string{"studentID": "missing"})
	recorder := httptest.NewRecorder()

	handler.ReplacePhotos(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestStudentsHandler_NoDatabase(t *testing.T) {
	handler := &StudentsHandler{config: testConfig()}

	req := httptest.NewRequest("GET", "/api/v1/students", nil)
	recorder := httptest.NewRecorder()

	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
	assertJSONError(t, recorder, "database not configured")
}
