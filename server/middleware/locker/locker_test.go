package locker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCheckBouncesWhenLocked(t *testing.T) {
	l := New()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := l.Check(inner)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pos", nil))
	if w.Code != http.StatusOK {
		t.Errorf("unlocked request got %d, want 200", w.Code)
	}

	l.Lock()
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pos", nil))
	if w.Code != http.StatusLocked {
		t.Errorf("locked request got %d, want 423", w.Code)
	}

	// the lock route itself must stay reachable or the lock is permanent
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lock", nil))
	if w.Code != http.StatusOK {
		t.Errorf("lock route got %d while locked, want 200", w.Code)
	}
}

func TestHTTPSetTogglesLock(t *testing.T) {
	l := New()
	w := httptest.NewRecorder()
	l.HTTPSet(w, httptest.NewRequest(http.MethodPost, "/lock", strings.NewReader(`{"bool": true}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("set got %d, want 200", w.Code)
	}
	if !l.Locked() {
		t.Error("locker not locked after set")
	}
	w = httptest.NewRecorder()
	l.HTTPSet(w, httptest.NewRequest(http.MethodPost, "/lock", strings.NewReader(`{"bool": false}`)))
	if l.Locked() {
		t.Error("locker still locked after clear")
	}
}
