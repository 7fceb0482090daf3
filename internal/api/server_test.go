package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dverbeek/lecturecast/internal/account"
	"github.com/dverbeek/lecturecast/internal/artifact"
	"github.com/dverbeek/lecturecast/internal/config"
	"github.com/dverbeek/lecturecast/internal/ledger"
	"github.com/dverbeek/lecturecast/internal/model"
	"github.com/dverbeek/lecturecast/internal/queue"
	"github.com/dverbeek/lecturecast/internal/summarizer"
)

// ---- fakes ----

type fakeAccounts struct {
	byID    map[string]*model.Account
	pingErr error

	appendedTo      []string
	appendedEntries []model.UploadHistoryEntry
}

func newFakeAccounts(accs ...*model.Account) *fakeAccounts {
	f := &fakeAccounts{byID: map[string]*model.Account{}}
	for _, acc := range accs {
		f.byID[acc.ID] = acc
	}
	return f
}

func (f *fakeAccounts) Create(ctx context.Context, acc *model.Account) error {
	for _, existing := range f.byID {
		if existing.Email == acc.Email {
			return account.ErrEmailTaken
		}
	}
	copied := *acc
	f.byID[acc.ID] = &copied
	return nil
}

func (f *fakeAccounts) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	for _, acc := range f.byID {
		if acc.Email == model.NormalizeEmail(email) {
			copied := *acc
			return &copied, nil
		}
	}
	return nil, account.ErrNotFound
}

func (f *fakeAccounts) GetByID(ctx context.Context, id string) (*model.Account, error) {
	acc, ok := f.byID[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	copied := *acc
	return &copied, nil
}

func (f *fakeAccounts) Save(ctx context.Context, acc *model.Account) error {
	if _, ok := f.byID[acc.ID]; !ok {
		return account.ErrNotFound
	}
	copied := *acc
	f.byID[acc.ID] = &copied
	return nil
}

func (f *fakeAccounts) AppendHistory(ctx context.Context, id string, entry model.UploadHistoryEntry) error {
	acc, ok := f.byID[id]
	if !ok {
		return account.ErrNotFound
	}
	acc.UploadHistory = account.PrependHistory(acc.UploadHistory, entry)
	f.appendedTo = append(f.appendedTo, id)
	f.appendedEntries = append(f.appendedEntries, entry)
	return nil
}

func (f *fakeAccounts) Ping(ctx context.Context) error { return f.pingErr }

type fakeArchiver struct {
	payloads []queue.ArchivePayload
	err      error
}

func (f *fakeArchiver) Enqueue(ctx context.Context, payload queue.ArchivePayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

// ---- harness ----

type testEnv struct {
	server   *Server
	cfg      *config.Config
	accounts *fakeAccounts
	archiver *fakeArchiver
	ledger   *ledger.Store
	invoker  *summarizer.Invoker
}

// newTestEnv wires a Server over temp directories with a stubbed command
// runner standing in for the Python pipeline.
func newTestEnv(t *testing.T, accounts *fakeAccounts, runner func(ctx context.Context, name string, args ...string) error) *testEnv {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		Address:          ":0",
		Port:             3000,
		UploadDir:        filepath.Join(root, "uploads"),
		OutputDir:        filepath.Join(root, "outputs"),
		DataDir:          filepath.Join(root, "data"),
		PublicDir:        filepath.Join(root, "public"),
		MaxFileSize:      1 << 20,
		PythonBin:        "python",
		ScriptPath:       "main.py",
		GeminiModel:      "gemini-1.5-flash",
		InvokeTimeout:    time.Minute,
		JWTSecret:        []byte("test-secret"),
		TokenTTL:         7 * 24 * time.Hour,
		RememberTokenTTL: 30 * 24 * time.Hour,
	}
	require.NoError(t, os.MkdirAll(cfg.OutputDir, 0o750))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledgerStore := ledger.NewStore(cfg.DataDir, log)
	invoker := summarizer.NewInvoker(cfg.PythonBin, cfg.ScriptPath, cfg.UploadDir, cfg.OutputDir, cfg.GeminiModel, cfg.InvokeTimeout)
	if runner != nil {
		invoker.WithCommandRunner(runner)
	}
	reader := artifact.NewReader(cfg.OutputDir, log)
	archiver := &fakeArchiver{}

	var store AccountStore
	if accounts != nil {
		store = accounts
	}
	return &testEnv{
		server:   New(cfg, log, store, ledgerStore, invoker, reader, archiver),
		cfg:      cfg,
		accounts: accounts,
		archiver: archiver,
		ledger:   ledgerStore,
		invoker:  invoker,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

// writeArtifact drops a summary.json as the external pipeline would.
func (e *testEnv) writeArtifact(t *testing.T, bullets string) {
	t.Helper()
	path := filepath.Join(e.cfg.OutputDir, "summary.json")
	require.NoError(t, os.WriteFile(path, []byte(bullets), 0o644))
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}
