package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"testing"

	"memorymatch/internal/score"
)

// fakeStore is an in-memory ScoreStore for handler tests.
type fakeStore struct {
	users  map[string]*score.User // by id
	byName map[string]string      // lower(username) → id
	scores []score.Record
	nextID int
	fail   bool // force internal errors
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]*score.User{}, byName: map[string]string{}}
}

func (f *fakeStore) CreateUser(_ context.Context, username, password string) (string, error) {
	if f.fail {
		return "", context.DeadlineExceeded
	}
	key := strings.ToLower(username)
	if _, ok := f.byName[key]; ok {
		return "", score.ErrUsernameTaken
	}
	f.nextID++
	id := "u" + strconv.Itoa(f.nextID)
	f.users[id] = &score.User{ID: id, Username: username, PasswordHash: "!" + password}
	f.byName[key] = id
	return id, nil
}

func (f *fakeStore) Authenticate(_ context.Context, username, password string) (string, error) {
	id, ok := f.byName[strings.ToLower(username)]
	if !ok {
		return "", score.ErrInvalidCredentials
	}
	if f.users[id].PasswordHash != "!"+password {
		return "", score.ErrInvalidCredentials
	}
	return id, nil
}

func (f *fakeStore) FindUserByID(_ context.Context, id string) (*score.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, score.ErrNotFound
}

func (f *fakeStore) SaveScore(_ context.Context, rec score.Record) error {
	if f.fail {
		return context.DeadlineExceeded
	}
	f.scores = append(f.scores, rec)
	return nil
}

func (f *fakeStore) Leaderboard(_ context.Context) ([]score.Entry, error) {
	recs := append([]score.Record(nil), f.scores...)
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].TimeLeft > recs[j].TimeLeft
	})
	out := []score.Entry{}
	for i, r := range recs {
		u, ok := f.users[r.UserID]
		if !ok {
			continue
		}
		out = append(out, score.Entry{Rank: i + 1, Player: u.Username, Score: r.Score, TimeLeft: r.TimeLeft})
	}
	return out, nil
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeAuthRes(t *testing.T, rec *httptest.ResponseRecorder) authRes {
	t.Helper()
	var res authRes
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return res
}

func TestRegisterAndLogin(t *testing.T) {
	srv := New(newFakeStore())

	rec := doJSON(t, srv, "POST", "/register", `{"username":"alice","password":"secret123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	if res := decodeAuthRes(t, rec); !res.Success {
		t.Fatalf("register response = %+v", res)
	}

	rec = doJSON(t, srv, "POST", "/login", `{"username":"alice","password":"secret123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	res := decodeAuthRes(t, rec)
	if !res.Success || res.UserID == "" {
		t.Fatalf("login response = %+v, want success with userId", res)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	srv := New(newFakeStore())

	doJSON(t, srv, "POST", "/register", `{"username":"bob","password":"pw1pw1pw1"}`)
	rec := doJSON(t, srv, "POST", "/register", `{"username":"bob","password":"pw2pw2pw2"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", rec.Code)
	}
	res := decodeAuthRes(t, rec)
	if res.Success || res.Message != "Username already exists" {
		t.Fatalf("duplicate register response = %+v", res)
	}
}

func TestLoginFailureIsGeneric(t *testing.T) {
	srv := New(newFakeStore())
	doJSON(t, srv, "POST", "/register", `{"username":"carol","password":"right-pw"}`)

	wrongPass := decodeAuthRes(t, doJSON(t, srv, "POST", "/login", `{"username":"carol","password":"wrong-pw"}`))
	noUser := decodeAuthRes(t, doJSON(t, srv, "POST", "/login", `{"username":"nobody","password":"wrong-pw"}`))

	if wrongPass.Success || noUser.Success {
		t.Fatal("failed logins reported success")
	}
	if wrongPass.Message != noUser.Message {
		t.Fatalf("messages differ (%q vs %q): username existence is leaking", wrongPass.Message, noUser.Message)
	}
}

func TestMissingCredentialsRejectedBeforeLookup(t *testing.T) {
	st := newFakeStore()
	st.fail = true // any store call would blow up with an internal error
	srv := New(st)

	for _, body := range []string{`{}`, `{"username":"x"}`, `{"password":"y"}`} {
		if rec := doJSON(t, srv, "POST", "/login", body); rec.Code != http.StatusBadRequest {
			t.Errorf("login %s: status = %d, want 400", body, rec.Code)
		}
		if rec := doJSON(t, srv, "POST", "/register", body); rec.Code != http.StatusBadRequest {
			t.Errorf("register %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestSaveScoreValidation(t *testing.T) {
	st := newFakeStore()
	srv := New(st)
	id, _ := st.CreateUser(context.Background(), "dave", "pw")

	// Zero score and zero time are legitimate (a loss with no matches).
	rec := doJSON(t, srv, "POST", "/save-score", `{"userId":"`+id+`","score":0,"timeRemaining":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save-score status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(st.scores) != 1 {
		t.Fatalf("stored %d scores, want 1", len(st.scores))
	}

	for _, body := range []string{
		`{"score":5,"timeRemaining":10}`,
		`{"userId":"` + id + `","timeRemaining":10}`,
		`{"userId":"` + id + `","score":5}`,
	} {
		if rec := doJSON(t, srv, "POST", "/save-score", body); rec.Code != http.StatusBadRequest {
			t.Errorf("save-score %s: status = %d, want 400", body, rec.Code)
		}
	}
	if len(st.scores) != 1 {
		t.Fatalf("invalid requests mutated storage: %d scores", len(st.scores))
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	st := newFakeStore()
	srv := New(st)
	ctx := context.Background()
	idA, _ := st.CreateUser(ctx, "A", "pw")
	idB, _ := st.CreateUser(ctx, "B", "pw")
	idC, _ := st.CreateUser(ctx, "C", "pw")
	st.scores = []score.Record{
		{UserID: idC, Score: 90, TimeLeft: 20},
		{UserID: idA, Score: 100, TimeLeft: 10},
		{UserID: idB, Score: 100, TimeLeft: 5},
	}

	rec := doJSON(t, srv, "GET", "/leaderboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard status = %d", rec.Code)
	}
	var entries []score.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	wantPlayers := []string{"A", "B", "C"}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		if e.Player != wantPlayers[i] || e.Rank != i+1 {
			t.Errorf("entry %d = %+v, want player %s rank %d", i, e, wantPlayers[i], i+1)
		}
	}
}

func TestLeaderboardEmptyIsArray(t *testing.T) {
	srv := New(newFakeStore())
	rec := doJSON(t, srv, "GET", "/leaderboard", "")
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("empty leaderboard body = %q, want []", got)
	}
}

func TestRoutingErrors(t *testing.T) {
	srv := New(newFakeStore())

	if rec := doJSON(t, srv, "GET", "/no-such-path", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, srv, "GET", "/login", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /login status = %d, want 405", rec.Code)
	}
	if rec := doJSON(t, srv, "POST", "/save-score", `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d, want 400", rec.Code)
	}
}

func TestMeRequiresAuthCookie(t *testing.T) {
	srv := New(newFakeStore())
	doJSON(t, srv, "POST", "/register", `{"username":"erin","password":"secret123"}`)

	if rec := doJSON(t, srv, "GET", "/me", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated /me status = %d, want 401", rec.Code)
	}

	login := doJSON(t, srv, "POST", "/login", `{"username":"erin","password":"secret123"}`)
	cookies := login.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login set no auth cookie")
	}

	req := httptest.NewRequest("GET", "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/me with cookie status = %d, body %s", rec.Code, rec.Body.String())
	}
	var me authUser
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatal(err)
	}
	if me.Username != "erin" {
		t.Fatalf("/me username = %q, want erin", me.Username)
	}
}
