package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	config "github.com/getpublora/publora/configs"
	"github.com/getpublora/publora/internal/models"
	"github.com/getpublora/publora/internal/platform"
	"github.com/getpublora/publora/pkg/utils"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

func testConfig() config.Config {
	return config.Config{
		SecretKey:            testSecretKey,
		PublishOffsetMinutes: 60,
	}
}

func encryptToken(t *testing.T, token string) string {
	t.Helper()
	enc, err := utils.Encrypt([]byte(token), []byte(testSecretKey))
	if err != nil {
		t.Fatalf("encrypt token: %v", err)
	}
	return enc
}

type pairKey struct {
	itemID int64
	connID int64
}

// fakeSendLedgerRepo is an in-memory send ledger with the same uniqueness
// guarantee as the real table: one entry per (content item, connection).
type fakeSendLedgerRepo struct {
	nextID  int64
	entries map[pairKey]*models.SendLedgerEntry
}

func newFakeSendLedgerRepo() *fakeSendLedgerRepo {
	return &fakeSendLedgerRepo{nextID: 1, entries: make(map[pairKey]*models.SendLedgerEntry)}
}

func (f *fakeSendLedgerRepo) GetByPair(ctx context.Context, contentItemID, connectionID int64) (*models.SendLedgerEntry, error) {
	e, ok := f.entries[pairKey{contentItemID, connectionID}]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (f *fakeSendLedgerRepo) Claim(ctx context.Context, contentItemID, connectionID int64) (int64, bool, error) {
	key := pairKey{contentItemID, connectionID}
	if _, ok := f.entries[key]; ok {
		return 0, false, nil
	}
	id := f.nextID
	f.nextID++
	f.entries[key] = &models.SendLedgerEntry{
		ID:            id,
		ContentItemID: contentItemID,
		ConnectionID:  connectionID,
		Status:        models.SendStatusPublishing,
	}
	return id, true, nil
}

func (f *fakeSendLedgerRepo) byID(id int64) *models.SendLedgerEntry {
	for _, e := range f.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (f *fakeSendLedgerRepo) seed(e *models.SendLedgerEntry) {
	if e.ID == 0 {
		e.ID = f.nextID
		f.nextID++
	} else if e.ID >= f.nextID {
		f.nextID = e.ID + 1
	}
	f.entries[pairKey{e.ContentItemID, e.ConnectionID}] = e
}

func (f *fakeSendLedgerRepo) SetPublishing(ctx context.Context, id int64) error {
	e := f.byID(id)
	if e == nil {
		return errors.New("entry not found")
	}
	e.Status = models.SendStatusPublishing
	return nil
}

func (f *fakeSendLedgerRepo) ResetForRetry(ctx context.Context, id int64) error {
	e := f.byID(id)
	if e == nil {
		return errors.New("entry not found")
	}
	e.Status = models.SendStatusPublishing
	e.RetryCount = 0
	e.ErrorMessage = ""
	return nil
}

func (f *fakeSendLedgerRepo) MarkPublished(ctx context.Context, id int64, remotePostID, remotePostURL string) error {
	e := f.byID(id)
	if e == nil {
		return errors.New("entry not found")
	}
	e.Status = models.SendStatusPublished
	e.RemotePostID = remotePostID
	e.RemotePostURL = remotePostURL
	e.ErrorMessage = ""
	return nil
}

func (f *fakeSendLedgerRepo) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	e := f.byID(id)
	if e == nil {
		return errors.New("entry not found")
	}
	e.Status = models.SendStatusFailed
	e.ErrorMessage = errorMessage
	e.RetryCount++
	return nil
}

func (f *fakeSendLedgerRepo) ListByContentItem(ctx context.Context, contentItemID int64) ([]*models.SendLedgerEntry, error) {
	var out []*models.SendLedgerEntry
	for _, e := range f.entries {
		if e.ContentItemID == contentItemID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeContentItemRepo struct {
	items          map[int64]*models.ContentItem
	due            []*models.ContentItem
	publishedCalls int
}

func newFakeContentItemRepo(items ...*models.ContentItem) *fakeContentItemRepo {
	f := &fakeContentItemRepo{items: make(map[int64]*models.ContentItem)}
	for _, item := range items {
		f.items[item.ID] = item
	}
	return f
}

func (f *fakeContentItemRepo) GetByID(ctx context.Context, id int64) (*models.ContentItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	return item, nil
}

func (f *fakeContentItemRepo) Create(ctx context.Context, tx *sql.Tx, item *models.ContentItem) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeContentItemRepo) ListByOrgID(ctx context.Context, orgID int64) ([]*models.ContentItem, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeContentItemRepo) ListScheduledDue(ctx context.Context, orgID int64, today time.Time) ([]*models.ContentItem, error) {
	return f.due, nil
}

func (f *fakeContentItemRepo) CheckByOrgID(ctx context.Context, itemID, orgID int64) (bool, error) {
	item, ok := f.items[itemID]
	return ok && item.OrgID == orgID, nil
}

func (f *fakeContentItemRepo) UpdateStatus(ctx context.Context, status string, itemID int64) error {
	if item, ok := f.items[itemID]; ok {
		item.Status = status
	}
	return nil
}

func (f *fakeContentItemRepo) MarkPublished(ctx context.Context, itemID int64, publishedAt time.Time) error {
	f.publishedCalls++
	item, ok := f.items[itemID]
	if !ok {
		return errors.New("item not found")
	}
	item.Status = models.ContentStatusPublished
	item.PublishedAt = sql.NullTime{Time: publishedAt, Valid: true}
	return nil
}

func (f *fakeContentItemRepo) Remove(ctx context.Context, id int64) error {
	delete(f.items, id)
	return nil
}

type fakeConnectionRepo struct {
	conns map[int64]*models.Connection
}

func newFakeConnectionRepo(conns ...*models.Connection) *fakeConnectionRepo {
	f := &fakeConnectionRepo{conns: make(map[int64]*models.Connection)}
	for _, conn := range conns {
		f.conns[conn.ID] = conn
	}
	return f
}

func (f *fakeConnectionRepo) Create(ctx context.Context, tx *sql.Tx, conn *models.Connection) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeConnectionRepo) GetByID(ctx context.Context, id int64) (*models.Connection, error) {
	conn, ok := f.conns[id]
	if !ok {
		return nil, nil
	}
	return conn, nil
}

func (f *fakeConnectionRepo) ListActiveByOrgID(ctx context.Context, orgID int64) ([]*models.Connection, error) {
	var out []*models.Connection
	for _, conn := range f.conns {
		if conn.OrgID == orgID && conn.IsActive {
			out = append(out, conn)
		}
	}
	return out, nil
}

func (f *fakeConnectionRepo) ListInfoByOrgID(ctx context.Context, orgID int64) ([]*models.Connection, error) {
	return f.ListActiveByOrgID(ctx, orgID)
}

func (f *fakeConnectionRepo) ListByTokenExpiry(ctx context.Context, initialTime, finalTime time.Time) ([]*models.Connection, error) {
	return nil, nil
}

func (f *fakeConnectionRepo) CheckByOrgID(ctx context.Context, connectionID, orgID int64) (bool, error) {
	conn, ok := f.conns[connectionID]
	return ok && conn.OrgID == orgID, nil
}

func (f *fakeConnectionRepo) SetToken(ctx context.Context, orgID int64, oldAccessToken string, conn *models.Connection) error {
	return nil
}

func (f *fakeConnectionRepo) Deactivate(ctx context.Context, id int64) error {
	if conn, ok := f.conns[id]; ok {
		conn.IsActive = false
	}
	return nil
}

// fakePublisher fails any publish whose account id is listed in failAccounts
// and succeeds otherwise.
type fakePublisher struct {
	failAccounts map[string]string
	calls        int
}

func (p *fakePublisher) Publish(ctx context.Context, creds platform.Credentials, payload platform.Payload) (*platform.Outcome, error) {
	p.calls++
	if msg, ok := p.failAccounts[creds.AccountID]; ok {
		return nil, errors.New(msg)
	}
	return &platform.Outcome{
		RemotePostID:  "remote-" + creds.AccountID,
		RemotePostURL: "https://example.com/" + creds.AccountID,
	}, nil
}
