package node

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pkg/errors"
)

func TestAppHandle(t *testing.T) {
	ctx := ContextWithNoLogger(context.Background())

	app := New(ctx, RequestLogger, ErrorHandler)
	app.Handle(http.MethodGet, "/items/{id}", func(ctx context.Context, w http.ResponseWriter,
		r *http.Request) error {

		id := Params(r)["id"]
		switch id {
		case "missing":
			return errors.Wrap(ErrNotFound, id)
		case "bad":
			return NewRequestError(errors.New("invalid id"), http.StatusBadRequest)
		case "panic":
			panic("handler panic")
		}

		return Respond(ctx, w, map[string]string{"id": id}, http.StatusOK)
	})

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/items/abc", http.StatusOK, `{"id":"abc"}`},
		{"/items/missing", http.StatusNotFound, `{"error":"missing: Entity not found"}`},
		{"/items/bad", http.StatusBadRequest, `{"error":"invalid id"}`},
		{"/items/panic", http.StatusInternalServerError, `{"error":"Internal Server Error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.status {
				t.Fatalf("Wrong status : got %d, wanted %d", w.Code, tt.status)
			}

			var got, want interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("Failed to unmarshal body : %s", err)
			}
			json.Unmarshal([]byte(tt.body), &want)

			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(want)
			if string(gotJSON) != string(wantJSON) {
				t.Fatalf("Wrong body : got %s, wanted %s", gotJSON, wantJSON)
			}
		})
	}

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/items/abc", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Wrong status for wrong method : got %d, wanted %d", w.Code,
			http.StatusMethodNotAllowed)
	}
}

func TestMapLock(t *testing.T) {
	locks := NewMapLock()

	var wg sync.WaitGroup
	count := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("counter")
			count++
			unlock()
		}()
	}
	wg.Wait()

	if count != 50 {
		t.Fatalf("Wrong count : got %d, wanted %d", count, 50)
	}

	if locks.Len() != 0 {
		t.Fatalf("Released locks kept : %d", locks.Len())
	}

	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b")
	if locks.Len() != 2 {
		t.Fatalf("Wrong held lock count : got %d, wanted %d", locks.Len(), 2)
	}
	unlockA()
	unlockB()
}

func TestContextWithLogger(t *testing.T) {
	ctx, err := ContextWithLogger(context.Background(), true, true, "", "scheduler")
	if err != nil {
		t.Fatalf("Failed to create logger : %s", err)
	}
	LogVerbose(ctx, "Logger ready")

	if _, err := ContextWithLogger(context.Background(), false, false,
		"/missing/directory/pollrd.log"); err == nil {
		t.Fatalf("Logger created with unwritable file")
	}
}
