package bill

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/billed-app/billed/internal/logger"
)

// FileURLPrefix is where the HTTP server serves receipt files from
const FileURLPrefix = "/files/"

// IDGenerator generates unique keys for bills and receipt files
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Store is the bill record and receipt file backend used by the controllers
type Store struct {
	db          DB
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewStore creates a Store with uuid keys and wall clock time
func NewStore(db DB, storage Storage) *Store {
	return NewStoreWithDeps(db, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewStoreWithDeps creates a Store with custom dependencies for testing
func NewStoreWithDeps(db DB, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Store {
	return &Store{
		db:          db,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters from a receipt name and bounds its length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// ContentTypeFor guesses a receipt content type from its file name
func ContentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func validate(bill *Bill) error {
	if bill.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidBill)
	}
	if !bill.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidBill, bill.Status)
	}
	if bill.Date == "" {
		return fmt.Errorf("%w: date is required", ErrInvalidBill)
	}
	if _, err := time.Parse(DateLayout, bill.Date); err != nil {
		return fmt.Errorf("%w: date %q is not a calendar date", ErrInvalidBill, bill.Date)
	}
	if bill.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidBill)
	}
	return nil
}

// List returns the bills of one employee as stored
func (s *Store) List(ctx context.Context, email string) ([]Bill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored, err := s.db.ListBills(email)
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	bills := make([]Bill, 0, len(stored))
	for _, b := range stored {
		bills = append(bills, *b)
	}
	return bills, nil
}

// Get returns a single bill
func (s *Store) Get(ctx context.Context, id string) (Bill, error) {
	if err := ctx.Err(); err != nil {
		return Bill{}, err
	}
	b, err := s.db.GetBill(id)
	if err != nil {
		return Bill{}, fmt.Errorf("getting bill: %w", err)
	}
	return *b, nil
}

// Create validates and stores a new bill. An empty ID gets a generated one.
func (s *Store) Create(ctx context.Context, bill Bill) (Bill, error) {
	if err := ctx.Err(); err != nil {
		return Bill{}, err
	}
	if err := validate(&bill); err != nil {
		return Bill{}, err
	}
	if bill.ID == "" {
		bill.ID = s.idGenerator.Generate()
	} else if _, err := s.db.GetBill(bill.ID); err == nil {
		return Bill{}, fmt.Errorf("%w: bill %s already exists", ErrInvalidBill, bill.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return Bill{}, fmt.Errorf("checking bill: %w", err)
	}

	now := s.timeSource.Now()
	bill.CreatedAt = now
	bill.UpdatedAt = now
	if err := s.db.SaveBill(&bill); err != nil {
		return Bill{}, fmt.Errorf("saving bill to database: %w", err)
	}
	logger.Info("bill created", zap.String("id", bill.ID), zap.String("email", bill.Email))
	return bill, nil
}

// Update replaces an existing bill, keeping its owner and creation time
func (s *Store) Update(ctx context.Context, bill Bill) (Bill, error) {
	if err := ctx.Err(); err != nil {
		return Bill{}, err
	}
	existing, err := s.db.GetBill(bill.ID)
	if err != nil {
		return Bill{}, fmt.Errorf("getting bill for update: %w", err)
	}
	bill.Email = existing.Email
	bill.CreatedAt = existing.CreatedAt
	if err := validate(&bill); err != nil {
		return Bill{}, err
	}
	bill.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveBill(&bill); err != nil {
		return Bill{}, fmt.Errorf("saving bill to database: %w", err)
	}
	return bill, nil
}

// UploadFile stores a receipt on behalf of email and returns where it can be fetched
func (s *Store) UploadFile(ctx context.Context, file Upload, email string) (UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return UploadResult{}, err
	}
	key := s.idGenerator.Generate()
	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", key, sanitizeFilename(file.Name)), file.Data)
	if err != nil {
		return UploadResult{}, fmt.Errorf("saving file: %w", err)
	}

	contentType := strings.ToLower(strings.TrimSpace(file.ContentType))
	if contentType == "" {
		contentType = ContentTypeFor(file.Name)
	}

	record := &FileRecord{
		Key:         key,
		Name:        file.Name,
		Path:        savedPath,
		ContentType: contentType,
		Email:       email,
		CreatedAt:   s.timeSource.Now(),
	}
	if err := s.db.SaveFile(record); err != nil {
		if delErr := s.storage.Delete(savedPath); delErr != nil {
			logger.Warn("failed to clean up receipt file", zap.String("path", savedPath), zap.Error(delErr))
		}
		return UploadResult{}, fmt.Errorf("saving file record: %w", err)
	}

	return UploadResult{URL: FileURLPrefix + key, Key: key}, nil
}

// File returns the contents and metadata of an uploaded receipt
func (s *Store) File(ctx context.Context, key string) ([]byte, *FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	record, err := s.db.GetFile(key)
	if err != nil {
		return nil, nil, fmt.Errorf("getting file record: %w", err)
	}
	data, err := s.storage.Get(record.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("getting receipt file: %w", err)
	}
	return data, record, nil
}
