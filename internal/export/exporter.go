// Package export writes dashboard snapshots and trade journal archives to
// object storage, optionally with an HMAC signature sidecar.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/alanyoungcy/averix/internal/crypto"
	"github.com/alanyoungcy/averix/internal/dashboard"
	"github.com/alanyoungcy/averix/internal/domain"
)

// ErrBadSignature is returned by Verify when a snapshot does not match its
// signature sidecar.
var ErrBadSignature = errors.New("export: signature mismatch")

const (
	contentTypeJSON  = "application/json"
	contentTypeJSONL = "application/x-ndjson"
	sigSuffix        = ".sig"
)

// Result describes one uploaded snapshot.
type Result struct {
	Path    string `json:"path"`
	SigPath string `json:"sig_path,omitempty"`
	Bytes   int    `json:"bytes"`
}

// signature is the body of a .sig sidecar.
type signature struct {
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// Exporter uploads snapshots under <prefix>/<user>/.
type Exporter struct {
	writer  domain.BlobWriter
	signer  *crypto.Signer
	prefix  string
	audit   domain.AuditStore
	journal domain.TradeJournal
	logger  *slog.Logger
}

// NewExporter creates an Exporter. A nil signer disables sidecars.
func NewExporter(writer domain.BlobWriter, signer *crypto.Signer, prefix string, logger *slog.Logger) *Exporter {
	return &Exporter{
		writer: writer,
		signer: signer,
		prefix: prefix,
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// WithAudit records each upload in the audit log.
func (e *Exporter) WithAudit(a domain.AuditStore) *Exporter {
	e.audit = a
	return e
}

// WithJournal enables ArchiveJournal.
func (e *Exporter) WithJournal(j domain.TradeJournal) *Exporter {
	e.journal = j
	return e
}

// Export uploads snap as indented JSON at <prefix>/<user>/<timestamp>.json.
// The user segment is "anonymous" when the snapshot carries no profile.
func (e *Exporter) Export(ctx context.Context, snap dashboard.Snapshot) (Result, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("export: marshal snapshot: %w", err)
	}

	at := snap.Now.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}
	res := Result{
		Path:  SnapshotPath(e.prefix, userOf(snap), at),
		Bytes: len(data),
	}

	if err := e.writer.Put(ctx, res.Path, bytes.NewReader(data), contentTypeJSON); err != nil {
		return Result{}, fmt.Errorf("export: upload snapshot: %w", err)
	}

	if e.signer != nil {
		sig, err := json.Marshal(signature{
			Timestamp: at.Unix(),
			Signature: e.signer.Sign(data, at.Unix()),
		})
		if err != nil {
			return Result{}, fmt.Errorf("export: marshal signature: %w", err)
		}
		res.SigPath = res.Path + sigSuffix
		if err := e.writer.Put(ctx, res.SigPath, bytes.NewReader(sig), contentTypeJSON); err != nil {
			return Result{}, fmt.Errorf("export: upload signature: %w", err)
		}
	}

	e.logger.InfoContext(ctx, "snapshot exported",
		slog.String("path", res.Path),
		slog.Int("bytes", res.Bytes),
		slog.Bool("signed", res.SigPath != ""),
	)
	e.auditLog(ctx, "export.snapshot", map[string]any{
		"path":  res.Path,
		"bytes": res.Bytes,
	})
	return res, nil
}

// Verify reads the snapshot at p and its sidecar and checks the signature.
func (e *Exporter) Verify(ctx context.Context, reader domain.BlobReader, p string) error {
	if e.signer == nil {
		return fmt.Errorf("export: verify %s: no signing secret configured", p)
	}

	data, err := readAll(ctx, reader, p)
	if err != nil {
		return err
	}
	raw, err := readAll(ctx, reader, p+sigSuffix)
	if err != nil {
		return err
	}

	var sig signature
	if err := json.Unmarshal(raw, &sig); err != nil {
		return fmt.Errorf("export: decode signature %s: %w", p, err)
	}
	if !e.signer.Verify(data, sig.Timestamp, sig.Signature) {
		return fmt.Errorf("%w: %s", ErrBadSignature, p)
	}
	return nil
}

// ArchiveJournal uploads every journaled trade of userID created before the
// cutoff as JSONL at <prefix>/archive/<user>/trades/YYYY-MM.jsonl and returns
// the number of trades written. Nothing is uploaded when there are none.
func (e *Exporter) ArchiveJournal(ctx context.Context, userID string, before time.Time) (int, error) {
	if e.journal == nil {
		return 0, fmt.Errorf("export: archive journal: no journal configured")
	}

	trades, err := e.journal.List(ctx, userID, domain.ListOpts{Until: &before})
	if err != nil {
		return 0, fmt.Errorf("export: archive journal query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("export: archive journal marshal: %w", err)
	}

	p := ArchivePath(e.prefix, userID, before)
	if err := e.writer.Put(ctx, p, bytes.NewReader(buf), contentTypeJSONL); err != nil {
		return 0, fmt.Errorf("export: archive journal upload: %w", err)
	}

	e.logger.InfoContext(ctx, "journal archived",
		slog.String("path", p),
		slog.Int("trades", len(trades)),
	)
	e.auditLog(ctx, "export.archive", map[string]any{
		"path":   p,
		"count":  len(trades),
		"before": before.Format(time.RFC3339),
	})
	return len(trades), nil
}

// SnapshotPath builds the object key of a snapshot.
//
//	snapshots/u1/20250601T120000Z.json
func SnapshotPath(prefix, user string, at time.Time) string {
	return path.Join(prefix, user, at.UTC().Format("20060102T150405Z")+".json")
}

// ArchivePath builds the object key of a journal archive, partitioned by the
// year-month of the cutoff.
//
//	snapshots/archive/u1/trades/2025-01.jsonl
func ArchivePath(prefix, user string, before time.Time) string {
	return path.Join(prefix, "archive", user, "trades", before.UTC().Format("2006-01")+".jsonl")
}

// ----------------------------------------------------------------------------
// Internal helpers
// ----------------------------------------------------------------------------

func userOf(snap dashboard.Snapshot) string {
	if snap.Profile == nil || snap.Profile.ID == "" {
		return "anonymous"
	}
	return snap.Profile.ID
}

func (e *Exporter) auditLog(ctx context.Context, event string, detail map[string]any) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Log(ctx, event, detail); err != nil {
		e.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func readAll(ctx context.Context, reader domain.BlobReader, p string) ([]byte, error) {
	rc, err := reader.Get(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("export: read %s: %w", p, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("export: read %s: %w", p, err)
	}
	return data, nil
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
