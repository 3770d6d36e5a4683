package tests

import (
	"net/http"
	"testing"

	. "github.com/facillithub-ctrl/FHUBBETA2-sub000/apps/api/echo"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/assessment"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/attempt"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/user"
	testutil "github.com/facillithub-ctrl/FHUBBETA2-sub000/tests"
)

func newQuizBody(t *testing.T, title string) []byte {
	t.Helper()
	return marchallObj(t, assessment.NewAssessment{
		Title:           title,
		Kind:            assessment.KindGraded,
		DurationSeconds: 600,
		Questions: []assessment.NewQuestion{
			{Prompt: "Pick one", Type: assessment.TypeSingleChoice, Points: 10, Choices: []string{"a", "b"}, AnswerKey: "0"},
		},
	})
}

func Test_assessmentApi_staffGate(t *testing.T) {
	db.Reset()

	student := testutil.CreateUser(t, usrRepo, "Student", "gatestudent", "gatestudent@test.local", "pwd", []string{user.RoleStudent}, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "gateteacher", "gateteacher@test.local", "pwd", []string{user.RoleTeacher}, true)
	studentToken := getToken(t, student)
	teacherToken := getToken(t, teacher)

	tests := []httpTest{
		{name: "anonymous", method: http.MethodGet, path: "/v1/assessments", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "student list", method: http.MethodGet, path: "/v1/assessments", token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "student create", method: http.MethodPost, path: "/v1/assessments", token: studentToken, body: newQuizBody(t, "Nope"), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "teacher list", method: http.MethodGet, path: "/v1/assessments", token: teacherToken, wantCode: http.StatusOK, wantData: []byte("[]")},
		{name: "teacher delete", method: http.MethodDelete, path: "/v1/assessments/whatever", token: teacherToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_assessmentApi_lifecycle(t *testing.T) {
	db.Reset()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "lcteacher", "lcteacher@test.local", "pwd", []string{user.RoleTeacher}, true)
	token := getToken(t, teacher)

	// create
	req, rec := newAuthRequest(http.MethodPost, "/v1/assessments", token, newQuizBody(t, "Algebra Quiz"))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: code = %v; body = %s", rec.Code, rec.Body.String())
	}
	var a assessment.Assessment
	decodeBody(t, rec, &a)
	if a.Title != "Algebra Quiz" || a.IsPublished || a.CreatedBy != teacher.ID {
		t.Errorf("create: got %+v", a)
	}

	// update while draft
	req, rec = newAuthRequest(http.MethodPut, "/v1/assessments/"+a.ID, token,
		marchallObj(t, assessment.UpdateAssessment{Title: "Algebra Quiz v2"}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: code = %v; body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &a)
	if a.Title != "Algebra Quiz v2" {
		t.Errorf("update: Title = %q", a.Title)
	}

	// publish
	req, rec = newAuthRequest(http.MethodPost, "/v1/assessments/"+a.ID+"/publish", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("publish: code = %v; body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &a)
	if !a.IsPublished {
		t.Error("publish: IsPublished = false")
	}

	// published definitions are immutable
	req, rec = newAuthRequest(http.MethodPut, "/v1/assessments/"+a.ID, token,
		marchallObj(t, assessment.UpdateAssessment{Title: "Too late"}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("update after publish: code = %v, want %v; body = %s", rec.Code, http.StatusConflict, rec.Body.String())
	}

	// the authoring view still carries answer keys
	req, rec = newAuthRequest(http.MethodGet, "/v1/assessments/"+a.ID, token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("retrieve: code = %v; body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &a)
	if len(a.Questions) != 1 || a.Questions[0].AnswerKey != "0" {
		t.Errorf("retrieve: Questions = %+v, want answer key preserved", a.Questions)
	}
}

func Test_assessmentApi_sessionView(t *testing.T) {
	db.Reset()

	student := testutil.CreateUser(t, usrRepo, "Student", "svstudent", "svstudent@test.local", "pwd", []string{user.RoleStudent}, true)
	token := getToken(t, student)
	draft := testutil.CreateAssessment(t, assessRepo, "Draft", assessment.KindGraded, 600, false, testutil.GradedQuestions()...)
	published := testutil.CreateAssessment(t, assessRepo, "Published", assessment.KindGraded, 600, true, testutil.GradedQuestions()...)

	req, rec := newAuthRequest(http.MethodGet, "/v1/assessments/"+draft.ID+"/session-view", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("draft: code = %v, want %v; body = %s", rec.Code, http.StatusConflict, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/assessments/"+published.ID+"/session-view", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("published: code = %v; body = %s", rec.Code, rec.Body.String())
	}
	var view assessment.Assessment
	decodeBody(t, rec, &view)
	if len(view.Questions) != 3 {
		t.Fatalf("published: len(Questions) = %d, want 3", len(view.Questions))
	}
	for _, q := range view.Questions {
		if q.AnswerKey != "" {
			t.Errorf("published: question %s leaks AnswerKey %q", q.ID, q.AnswerKey)
		}
	}
}

func Test_assessmentApi_queryAttempts(t *testing.T) {
	db.Reset()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "qateacher", "qateacher@test.local", "pwd", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "qastudent", "qastudent@test.local", "pwd", []string{user.RoleStudent}, true)
	a := testutil.CreateAssessment(t, assessRepo, "Results Quiz", assessment.KindGraded, 600, true, testutil.GradedQuestions()...)
	teacherToken := getToken(t, teacher)

	// unknown assessment is a 404, not an empty list
	req, rec := newAuthRequest(http.MethodGet, "/v1/assessments/3f7b0000-0000-0000-0000-000000000000/attempts", teacherToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown: code = %v, want %v", rec.Code, http.StatusNotFound)
	}

	// no attempts yet
	req, rec = newAuthRequest(http.MethodGet, "/v1/assessments/"+a.ID+"/attempts", teacherToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty: code = %v; body = %s", rec.Code, rec.Body.String())
	}
	var recs []attempt.AttemptRecord
	decodeBody(t, rec, &recs)
	if len(recs) != 0 {
		t.Fatalf("empty: len = %d, want 0", len(recs))
	}

	// a student completes an attempt
	studentToken := getToken(t, student)
	req, rec = newAuthRequest(http.MethodPost, "/v1/attempts", studentToken, marchallObj(t, StartAttemptRequest{AssessmentID: a.ID}))
	app.ServeHTTP(rec, req)
	var sess SessionResponse
	decodeBody(t, rec, &sess)
	req, rec = newAuthRequest(http.MethodPost, "/v1/attempts/"+sess.ID+"/submit", studentToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: code = %v; body = %s", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/assessments/"+a.ID+"/attempts", teacherToken)
	app.ServeHTTP(rec, req)
	decodeBody(t, rec, &recs)
	if len(recs) != 1 {
		t.Fatalf("after submit: len = %d, want 1", len(recs))
	}
	if recs[0].SubjectID != student.ID || recs[0].Reason != attempt.ReasonManual {
		t.Errorf("after submit: got %+v", recs[0])
	}
}
