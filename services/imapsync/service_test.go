package imapsync

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientflow/mailsync/config"
	"github.com/clientflow/mailsync/interfaces"
	"github.com/clientflow/mailsync/internal/enum"
	appErrors "github.com/clientflow/mailsync/internal/errors"
	"github.com/clientflow/mailsync/internal/logger"
	"github.com/clientflow/mailsync/internal/models"
	"github.com/clientflow/mailsync/internal/repository"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

// fixtureFolder is one mailbox served by the fixture server.
type fixtureFolder struct {
	exists        uint32
	fetchResponse string
	failSelect    bool
	hangFetch     bool
}

// fixtureServer speaks just enough IMAP4 to exercise a sync run. It
// accepts any number of connections and serves each sequentially.
type fixtureServer struct {
	listener net.Listener
	folders  map[string]*fixtureFolder
	loginOK  bool

	mu         sync.Mutex
	fetchCalls int
}

func startFixtureServer(t *testing.T, loginOK bool, folders map[string]*fixtureFolder) *fixtureServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &fixtureServer{listener: listener, folders: folders, loginOK: loginOK}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go srv.serve(conn)
		}
	}()

	return srv
}

func (s *fixtureServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *fixtureServer) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

func (s *fixtureServer) serve(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	conn.Write([]byte("* OK IMAP4rev1 fixture ready\r\n"))

	var selected *fixtureFolder
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.SplitN(strings.TrimRight(line, "\r\n"), " ", 2)
		if len(fields) < 2 {
			return
		}
		tag, command := fields[0], fields[1]

		switch {
		case strings.HasPrefix(command, "LOGIN"):
			if s.loginOK {
				fmt.Fprintf(conn, "%s OK LOGIN completed\r\n", tag)
			} else {
				fmt.Fprintf(conn, "%s NO [AUTHENTICATIONFAILED] invalid credentials\r\n", tag)
			}

		case strings.HasPrefix(command, "LIST"):
			names := make([]string, 0, len(s.folders))
			for name := range s.folders {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(conn, "* LIST (\\HasNoChildren) \"/\" \"%s\"\r\n", name)
			}
			fmt.Fprintf(conn, "%s OK LIST completed\r\n", tag)

		case strings.HasPrefix(command, "SELECT"):
			name := strings.Trim(strings.TrimPrefix(command, "SELECT "), `"`)
			folder, ok := s.folders[name]
			if !ok || folder.failSelect {
				selected = nil
				fmt.Fprintf(conn, "%s NO cannot select %s\r\n", tag, name)
				continue
			}
			selected = folder
			fmt.Fprintf(conn, "* %d EXISTS\r\n* 0 RECENT\r\n", folder.exists)
			fmt.Fprintf(conn, "%s OK [READ-WRITE] SELECT completed\r\n", tag)

		case strings.HasPrefix(command, "FETCH"):
			s.mu.Lock()
			s.fetchCalls++
			s.mu.Unlock()
			if selected != nil && selected.hangFetch {
				// Never answer this one; the client's read deadline has
				// to release it.
				continue
			}
			if selected != nil {
				conn.Write([]byte(selected.fetchResponse))
			}
			fmt.Fprintf(conn, "%s OK FETCH completed\r\n", tag)

		case strings.HasPrefix(command, "LOGOUT"):
			fmt.Fprintf(conn, "* BYE fixture signing off\r\n%s OK LOGOUT completed\r\n", tag)
			return

		default:
			fmt.Fprintf(conn, "%s BAD unknown command\r\n", tag)
		}
	}
}

func fetchBlock(seq int, uid uint32, subject, body string) string {
	return fmt.Sprintf(
		"* %d FETCH (UID %d FLAGS (\\Seen) INTERNALDATE \"17-Jul-2025 09:14:02 +0000\" "+
			"ENVELOPE (\"Thu, 17 Jul 2025 09:14:01 +0000\" \"%s\" ((\"Ann Example\" NIL \"ann\" \"example.com\")) "+
			"NIL NIL NIL NIL NIL NIL NIL) BODY[TEXT] {%d}\r\n%s)\r\n",
		seq, uid, subject, len(body), body)
}

// in-memory fakes

type fakeEmailRepository struct {
	mu      sync.Mutex
	emails  map[string]*models.Email
	upserts int
}

func newFakeEmailRepository() *fakeEmailRepository {
	return &fakeEmailRepository{emails: map[string]*models.Email{}}
}

func emailKey(accountID, folder string, uid uint32) string {
	return fmt.Sprintf("%s/%s/%d", accountID, folder, uid)
}

func (r *fakeEmailRepository) Upsert(ctx context.Context, email *models.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	r.emails[emailKey(email.AccountID, email.Folder, email.UID)] = email
	return nil
}

func (r *fakeEmailRepository) GetByUID(ctx context.Context, accountID, folder string, uid uint32) (*models.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emails[emailKey(accountID, folder, uid)], nil
}

func (r *fakeEmailRepository) ListByFolder(ctx context.Context, accountID, folder string, limit, offset int) ([]*models.Email, int64, error) {
	return nil, 0, nil
}

func (r *fakeEmailRepository) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.emails)), nil
}

type fakeAccountRepository struct {
	mu           sync.Mutex
	markedSynced bool
	failedStatus string
}

func (r *fakeAccountRepository) GetByID(ctx context.Context, id string) (*models.MailAccount, error) {
	return nil, nil
}

func (r *fakeAccountRepository) List(ctx context.Context) ([]*models.MailAccount, error) {
	return nil, nil
}

func (r *fakeAccountRepository) Save(ctx context.Context, account *models.MailAccount) error {
	return nil
}

func (r *fakeAccountRepository) UpdateSyncStatus(ctx context.Context, id string, status enum.SyncStatus, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedStatus = status.String()
	return nil
}

func (r *fakeAccountRepository) MarkSynced(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markedSynced = true
	return nil
}

type fakeSyncStateRepository struct {
	mu     sync.Mutex
	states map[string]*models.FolderSyncState
}

func newFakeSyncStateRepository() *fakeSyncStateRepository {
	return &fakeSyncStateRepository{states: map[string]*models.FolderSyncState{}}
}

func (r *fakeSyncStateRepository) GetSyncState(ctx context.Context, accountID, folderName string) (*models.FolderSyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[folderName], nil
}

func (r *fakeSyncStateRepository) GetAccountSyncStates(ctx context.Context, accountID string) (map[string]*models.FolderSyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]*models.FolderSyncState{}
	for k, v := range r.states {
		out[k] = v
	}
	return out, nil
}

func (r *fakeSyncStateRepository) SaveSyncState(ctx context.Context, state *models.FolderSyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.FolderName] = state
	return nil
}

func (r *fakeSyncStateRepository) DeleteSyncState(ctx context.Context, accountID, folderName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, folderName)
	return nil
}

func (r *fakeSyncStateRepository) DeleteAccountSyncStates(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = map[string]*models.FolderSyncState{}
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []string
}

func (p *fakePublisher) PublishEvent(ctx context.Context, routingKey string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, routingKey)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) published(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, key := range p.messages {
		if key == routingKey {
			count++
		}
	}
	return count
}

// test harness

type syncFixture struct {
	service   interfaces.SyncService
	cfg       *config.SyncConfig
	emails    *fakeEmailRepository
	accounts  *fakeAccountRepository
	states    *fakeSyncStateRepository
	publisher *fakePublisher
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		emails:    newFakeEmailRepository(),
		accounts:  &fakeAccountRepository{},
		states:    newFakeSyncStateRepository(),
		publisher: &fakePublisher{},
	}
	repos := &repository.Repositories{
		EmailRepository:           f.emails,
		MailAccountRepository:     f.accounts,
		FolderSyncStateRepository: f.states,
	}
	f.cfg = &config.SyncConfig{
		BatchSize:             50,
		ControlTimeoutSeconds: 5,
		FetchTimeoutSeconds:   5,
		LogoutTimeoutSeconds:  1,
		MaxResponseBytes:      1 << 20,
	}
	f.service = NewSyncService(f.cfg, getLogger(), repos, f.publisher)
	return f
}

func testAccount(srv *fixtureServer) *models.MailAccount {
	return &models.MailAccount{
		ID:           "acc_test1",
		ImapServer:   "127.0.0.1",
		ImapPort:     srv.port(),
		ImapUsername: "user@example.com",
		ImapPassword: "secret",
		ImapTLS:      false,
	}
}

func TestRunSync_FullSyncPersistsMessages(t *testing.T) {
	srv := startFixtureServer(t, true, map[string]*fixtureFolder{
		"INBOX": {
			exists:        2,
			fetchResponse: fetchBlock(1, 101, "First", "hello") + fetchBlock(2, 102, "Second", "world"),
		},
	})
	f := newSyncFixture(t)

	summary := f.service.RunSync(context.Background(), testAccount(srv), enum.SyncModeFull)

	require.NoError(t, summary.Error)
	assert.Equal(t, 1, summary.FoldersSeen)
	assert.Equal(t, 0, summary.FoldersFailed)
	assert.Equal(t, 2, summary.MessagesFetched)
	assert.Equal(t, 2, summary.MessagesPersisted)
	assert.Equal(t, 0, summary.Failures)
	assert.False(t, summary.NewHighWaterMark.IsZero())
	assert.False(t, summary.FinishedAt.IsZero())

	stored, err := f.emails.GetByUID(context.Background(), "acc_test1", "INBOX", 101)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "First", stored.Subject)
	assert.Equal(t, "ann@example.com", stored.FromAddress)
	assert.Equal(t, "hello", stored.BodyText)
	assert.True(t, stored.IsRead)

	state := f.states.states["INBOX"]
	require.NotNil(t, state)
	assert.Equal(t, uint32(102), state.LastUID)
	assert.Equal(t, uint32(2), state.LastExists)

	assert.True(t, f.accounts.markedSynced)
	assert.Equal(t, 2, f.publisher.published(RoutingKeyEmailReceived))
	assert.Equal(t, 1, f.publisher.published(RoutingKeySyncCompleted))
}

func TestRunSync_AuthFailureIsFatal(t *testing.T) {
	srv := startFixtureServer(t, false, map[string]*fixtureFolder{
		"INBOX": {exists: 2},
	})
	f := newSyncFixture(t)

	summary := f.service.RunSync(context.Background(), testAccount(srv), enum.SyncModeFull)

	assert.ErrorIs(t, summary.Error, appErrors.ErrAuthFailed)
	assert.Equal(t, 0, summary.FoldersSeen)
	assert.Equal(t, 0, summary.MessagesPersisted)
	assert.False(t, f.accounts.markedSynced)
	assert.Equal(t, enum.SyncStatusFailed.String(), f.accounts.failedStatus)
	assert.Equal(t, 0, f.publisher.published(RoutingKeySyncCompleted))
}

func TestRunSync_RerunIsIdempotent(t *testing.T) {
	srv := startFixtureServer(t, true, map[string]*fixtureFolder{
		"INBOX": {
			exists:        2,
			fetchResponse: fetchBlock(1, 101, "First", "hello") + fetchBlock(2, 102, "Second", "world"),
		},
	})
	f := newSyncFixture(t)
	account := testAccount(srv)

	first := f.service.RunSync(context.Background(), account, enum.SyncModeFull)
	second := f.service.RunSync(context.Background(), account, enum.SyncModeFull)

	require.NoError(t, first.Error)
	require.NoError(t, second.Error)
	assert.Equal(t, 2, len(f.emails.emails))
	assert.Equal(t, 4, f.emails.upserts)
}

func TestRunSync_MalformedBlockIsolated(t *testing.T) {
	// The middle block carries no UID and must be dropped without
	// disturbing its neighbours.
	response := fetchBlock(1, 201, "Good one", "aa") +
		"* 2 FETCH (FLAGS (\\Seen) ENVELOPE (NIL \"no uid\" NIL NIL NIL NIL NIL NIL NIL NIL))\r\n" +
		fetchBlock(3, 203, "Good two", "bb")
	srv := startFixtureServer(t, true, map[string]*fixtureFolder{
		"INBOX": {exists: 3, fetchResponse: response},
	})
	f := newSyncFixture(t)

	summary := f.service.RunSync(context.Background(), testAccount(srv), enum.SyncModeFull)

	require.NoError(t, summary.Error)
	assert.Equal(t, 2, summary.MessagesFetched)
	assert.Equal(t, 2, summary.MessagesPersisted)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, uint32(203), f.states.states["INBOX"].LastUID)
}

func TestRunSync_IncrementalSkipsUnchangedFolder(t *testing.T) {
	srv := startFixtureServer(t, true, map[string]*fixtureFolder{
		"INBOX": {
			exists:        2,
			fetchResponse: fetchBlock(1, 101, "First", "hello") + fetchBlock(2, 102, "Second", "world"),
		},
	})
	f := newSyncFixture(t)
	f.states.states["INBOX"] = &models.FolderSyncState{
		AccountID:  "acc_test1",
		FolderName: "INBOX",
		LastUID:    102,
		LastExists: 2,
	}

	summary := f.service.RunSync(context.Background(), testAccount(srv), enum.SyncModeIncremental)

	require.NoError(t, summary.Error)
	assert.Equal(t, 1, summary.FoldersSeen)
	assert.Equal(t, 0, summary.MessagesFetched)
	assert.Equal(t, 0, srv.fetchCount())
	assert.Equal(t, uint32(102), f.states.states["INBOX"].LastUID)
}

func TestRunSync_FolderFailureIsolated(t *testing.T) {
	srv := startFixtureServer(t, true, map[string]*fixtureFolder{
		"Broken": {exists: 1, failSelect: true},
		"INBOX": {
			exists:        1,
			fetchResponse: fetchBlock(1, 301, "Survivor", "ok"),
		},
	})
	f := newSyncFixture(t)

	summary := f.service.RunSync(context.Background(), testAccount(srv), enum.SyncModeFull)

	require.NoError(t, summary.Error)
	assert.Equal(t, 2, summary.FoldersSeen)
	assert.Equal(t, 1, summary.FoldersFailed)
	assert.Equal(t, 1, summary.MessagesPersisted)
	assert.NotNil(t, f.states.states["INBOX"])
	assert.Nil(t, f.states.states["Broken"])
	assert.True(t, f.accounts.markedSynced)
}

func TestRunSync_BatchTimeoutIsolated(t *testing.T) {
	srv := startFixtureServer(t, true, map[string]*fixtureFolder{
		"Hang": {exists: 1, hangFetch: true},
		"INBOX": {
			exists:        1,
			fetchResponse: fetchBlock(1, 401, "After the hang", "ok"),
		},
	})
	f := newSyncFixture(t)
	f.cfg.FetchTimeoutSeconds = 1

	summary := f.service.RunSync(context.Background(), testAccount(srv), enum.SyncModeFull)

	require.NoError(t, summary.Error)
	assert.Equal(t, 2, summary.FoldersSeen)
	assert.Equal(t, 0, summary.FoldersFailed)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, 1, summary.MessagesPersisted)
	stored, err := f.emails.GetByUID(context.Background(), "acc_test1", "INBOX", 401)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestRunSync_EmptyFolder(t *testing.T) {
	srv := startFixtureServer(t, true, map[string]*fixtureFolder{
		"INBOX": {exists: 0},
	})
	f := newSyncFixture(t)

	summary := f.service.RunSync(context.Background(), testAccount(srv), enum.SyncModeFull)

	require.NoError(t, summary.Error)
	assert.Equal(t, 1, summary.FoldersSeen)
	assert.Equal(t, 0, summary.MessagesFetched)
	assert.Equal(t, 0, srv.fetchCount())
	require.NotNil(t, f.states.states["INBOX"])
	assert.Equal(t, uint32(0), f.states.states["INBOX"].LastExists)
}
