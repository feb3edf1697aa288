package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TimestampLayout is the fixed-width UTC form stored in Entry.Timestamp.
// Fixed width keeps lexical and chronological order identical.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// IdentityProvider resolves the effective identity behind a call.
type IdentityProvider interface {
	EffectiveIdentity(ctx context.Context) string
}

// StaticIdentity is an IdentityProvider that always returns the same name.
type StaticIdentity string

// EffectiveIdentity implements IdentityProvider.
func (s StaticIdentity) EffectiveIdentity(context.Context) string { return string(s) }

// Ledger is the append and verification engine over a Store.
type Ledger struct {
	store    Store
	secret   SecretProvider
	identity IdentityProvider
	lock     Serializer
	logger   *zap.Logger
	now      func() time.Time
	onAppend func(*Entry)
}

// New creates a Ledger. identity may be nil, in which case every append
// fails with ErrAttributionRequired. A nil lock selects a LocalSerializer.
func New(store Store, secret SecretProvider, identity IdentityProvider, lock Serializer, logger *zap.Logger) *Ledger {
	if lock == nil {
		lock = NewLocalSerializer(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:    store,
		secret:   secret,
		identity: identity,
		lock:     lock,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Tests use it to exercise timestamp
// clamping.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// SetAppendHook registers fn to be called after every successful append.
func (l *Ledger) SetAppendHook(fn func(*Entry)) { l.onAppend = fn }

// Store returns the underlying store for read-only callers.
func (l *Ledger) Store() Store { return l.store }

// Append writes rec as a new entry without citations.
func (l *Ledger) Append(ctx context.Context, rec Record) (*Receipt, error) {
	rec.Citations = Citations{}
	return l.appendOne(ctx, rec)
}

// AppendWithCitations writes rec together with a citation bundle. An empty
// digest is stored as NoCitations.
func (l *Ledger) AppendWithCitations(ctx context.Context, rec Record, c Citations) (*Receipt, error) {
	rec.Citations = c
	return l.appendOne(ctx, rec)
}

func (l *Ledger) appendOne(ctx context.Context, rec Record) (*Receipt, error) {
	// Caller input is rejected before the lock is contended.
	if !rec.Actor.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnauthorizedActor, rec.Actor)
	}
	if l.identity == nil || l.identity.EffectiveIdentity(ctx) == "" {
		return nil, ErrAttributionRequired
	}

	var receipt *Receipt
	err := l.Exclusive(ctx, func(tx *Tx) error {
		r, err := tx.Append(rec)
		receipt = r
		return err
	})
	return receipt, err
}

// Exclusive runs fn while holding the append serializer. The header and
// chain tail are validated before fn is called; fn sees a Tx that appends
// against the validated tail.
func (l *Ledger) Exclusive(ctx context.Context, fn func(tx *Tx) error) error {
	who := ""
	if l.identity != nil {
		who = l.identity.EffectiveIdentity(ctx)
	}
	secret, err := loadSecret(ctx, l.secret)
	if err != nil {
		return err
	}

	release, err := l.lock.Acquire(ctx)
	if err != nil {
		l.logger.Warn("ledger lock not acquired", zap.Error(err))
		return err
	}
	defer release()

	tx, err := l.begin(ctx, secret, who)
	if err != nil {
		return err
	}
	return fn(tx)
}

func (l *Ledger) begin(ctx context.Context, secret []byte, who string) (*Tx, error) {
	header, err := l.store.ReadHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	width, err := WidthOf(header)
	if err != nil {
		return nil, err
	}

	last, err := l.store.ReadLastRecord(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger tail: %w", err)
	}
	if last != nil && last.RecordHash == "" {
		return nil, fmt.Errorf("%w: row %d (id %s) has no record_hash", ErrPreflightFailed, last.Row, last.ID)
	}

	return &Tx{
		ctx:      ctx,
		ledger:   l,
		secret:   secret,
		identity: who,
		width:    width,
		last:     last,
	}, nil
}

// Tx is the view of the ledger inside an Exclusive section. It must not be
// used after the section returns.
type Tx struct {
	ctx      context.Context
	ledger   *Ledger
	secret   []byte
	identity string
	width    Width
	last     *Entry
}

// Width returns the header width the section was opened against.
func (tx *Tx) Width() Width { return tx.width }

// Context returns the context the section was opened with.
func (tx *Tx) Context() context.Context { return tx.ctx }

// Identity returns the effective identity of the caller.
func (tx *Tx) Identity() string { return tx.identity }

// Len returns the number of entries.
func (tx *Tx) Len() (int, error) { return tx.ledger.store.Len(tx.ctx) }

// Scan iterates all entries in row order.
func (tx *Tx) Scan(fn func(*Entry) error) error { return Scan(tx.ctx, tx.ledger.store, fn) }

// WriteField overwrites one column of a stored row.
func (tx *Tx) WriteField(row int, column, value string) error {
	return tx.ledger.store.WriteField(tx.ctx, row, column, value)
}

// WriteHeader replaces the header and updates the section's width.
func (tx *Tx) WriteHeader(w Width) error {
	if err := tx.ledger.store.WriteHeader(tx.ctx, Columns(w)); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	tx.width = w
	return nil
}

// Append validates, encodes, hashes and stores rec as the next entry. The
// store write is the final step. Entries are only ever written at extended
// width; a base-width ledger must be migrated first.
func (tx *Tx) Append(rec Record) (*Receipt, error) {
	if !rec.Actor.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnauthorizedActor, rec.Actor)
	}
	if tx.identity == "" {
		return nil, ErrAttributionRequired
	}
	if tx.width != WidthExtended {
		return nil, fmt.Errorf("%w: entries are written at %d columns, header has %d",
			ErrSchemaNotUpgraded, WidthExtended, tx.width)
	}
	if rec.Confidence != nil && rec.Confidence.Level == LegacyMarker {
		return nil, fmt.Errorf("confidence level %q is reserved for backfilled rows", LegacyMarker)
	}

	e := &Entry{
		ID:               uuid.New().String(),
		Timestamp:        tx.timestamp(),
		Actor:            rec.Actor,
		EventType:        rec.EventType,
		Text:             rec.Text,
		Annotation:       rec.Annotation,
		Status:           rec.Status,
		CitationIDs:      rec.Citations.IDs,
		CitationTitles:   rec.Citations.Titles,
		CitationSnippets: rec.Citations.Snippets,
		CitationURLs:     rec.Citations.URLs,
		CitationDigest:   rec.Citations.Digest,
	}
	if e.CitationDigest == "" {
		e.CitationDigest = NoCitations
	}
	if rec.Confidence != nil {
		e.ConfidenceLevel = rec.Confidence.Level
		e.ConfidenceID = rec.Confidence.ID
		e.ConfidenceJustification = rec.Confidence.Justification
	}
	if tx.last != nil {
		e.PrevHash = tx.last.RecordHash
	}

	hash, err := HashEntry(tx.secret, e, WidthExtended)
	if err != nil {
		return nil, err
	}
	e.RecordHash = hash

	if err := tx.ledger.store.AppendRecord(tx.ctx, e); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}
	tx.last = e

	tx.ledger.logger.Debug("ledger entry appended",
		zap.Int("row", e.Row),
		zap.String("event_type", e.EventType),
		zap.String("actor", string(e.Actor)),
		zap.String("identity", tx.identity),
	)
	if tx.ledger.onAppend != nil {
		tx.ledger.onAppend(e)
	}

	return &Receipt{
		Row:        e.Row,
		ID:         e.ID,
		Timestamp:  e.Timestamp,
		RecordHash: e.RecordHash,
		PrevHash:   e.PrevHash,
		Identity:   tx.identity,
	}, nil
}

// timestamp returns the current time, clamped so it never precedes the
// previous entry's timestamp.
func (tx *Tx) timestamp() string {
	ts := tx.ledger.now().UTC().Format(TimestampLayout)
	if tx.last != nil && ts < tx.last.Timestamp {
		return tx.last.Timestamp
	}
	return ts
}
