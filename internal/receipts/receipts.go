// Package receipts admits uploaded supporting documents: extension and size
// checks, sha256 content fingerprints, and duplicate rejection both within a
// batch and against what a payment already stores. Admission is all-or-nothing
// per batch; bit-identical evidence must never be double-recorded.
package receipts

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/payment-tracker/internal/models"
)

// MaxFileSize is the per-file ceiling.
const MaxFileSize = 1 << 20 // 1 MiB

// allowedExts: standard raster image formats plus PDF.
var allowedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
}

var (
	ErrNoFiles      = errors.New("receipt_required")
	ErrBadExtension = errors.New("unsupported_file_type")
	ErrFileTooLarge = errors.New("file_too_large")
	ErrDuplicate    = errors.New("duplicate_receipt")
)

// File is one upload to admit. Content must be seekable: the digest pass
// consumes the stream and rewinds it so the same object can still be stored.
type File struct {
	Name    string
	Size    int64
	Content io.ReadSeeker
}

// Staged is an admitted file with its computed fingerprint.
type Staged struct {
	File File
	Hash string
}

// Store is the blob storage boundary. The core only keeps the returned
// reference; storage mechanics stay behind this interface.
type Store interface {
	Save(name string, r io.Reader) (ref string, err error)
}

// BlobRemover is optionally implemented by stores that can discard a saved
// blob. AttachTx uses it so a failed batch leaves no orphans behind the
// rolled-back rows.
type BlobRemover interface {
	Remove(ref string) error
}

// Admit validates a batch and computes content digests. Any failing file fails
// the whole batch. A nil return with no error only happens for an empty batch,
// which callers treat per their own "at least one file" rule.
func Admit(files []File) ([]Staged, error) {
	staged := make([]Staged, 0, len(files))
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if !allowedExts[ext] {
			return nil, fmt.Errorf("%w: %s", ErrBadExtension, f.Name)
		}
		if f.Size > MaxFileSize {
			return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, f.Name)
		}
		sum, err := digest(f.Content)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", f.Name, err)
		}
		if seen[sum] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, f.Name)
		}
		seen[sum] = true
		staged = append(staged, Staged{File: f, Hash: sum})
	}
	return staged, nil
}

// digest consumes the full byte stream and resets the read position so the
// file can still be persisted afterwards.
func digest(r io.ReadSeeker) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// AttachTx persists a staged batch against a payment inside the caller's
// transaction: duplicate check against stored hashes, blob save, then the
// receipt rows. Returning an error rolls the rows back; blobs saved before
// the failure are removed again when the store supports it.
func AttachTx(tx *gorm.DB, store Store, paymentID uint, staged []Staged) error {
	if len(staged) == 0 {
		return nil
	}
	hashes := make([]string, len(staged))
	for i, s := range staged {
		hashes[i] = s.Hash
	}
	var existing int64
	if err := tx.Model(&models.PaymentReceipt{}).
		Where("payment_id = ? AND file_hash IN ?", paymentID, hashes).
		Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return ErrDuplicate
	}

	var saved []string
	discard := func(err error) error {
		if rm, ok := store.(BlobRemover); ok {
			for _, ref := range saved {
				// best effort; the batch error is what the caller needs
				_ = rm.Remove(ref)
			}
		}
		return err
	}
	for _, s := range staged {
		ref, err := store.Save(s.File.Name, s.File.Content)
		if err != nil {
			return discard(fmt.Errorf("store %s: %w", s.File.Name, err))
		}
		saved = append(saved, ref)
		rec := models.PaymentReceipt{
			PaymentID:  paymentID,
			StoredName: ref,
			FileName:   s.File.Name,
			FileHash:   s.Hash,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return discard(err)
		}
	}
	return nil
}
