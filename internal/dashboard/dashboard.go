// Package dashboard drives an operator session: choose buckets, list and
// select files, upload, download and start a bucket-to-bucket transfer.
// Every outcome is reported through a single notification queue.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/s3transfer/transferctl/internal/events"
	"github.com/s3transfer/transferctl/internal/logging"
	"github.com/s3transfer/transferctl/internal/notify"
	"github.com/s3transfer/transferctl/internal/progress"
	"github.com/s3transfer/transferctl/internal/recent"
	"github.com/s3transfer/transferctl/internal/schedule"
	"github.com/s3transfer/transferctl/internal/transfer"
	"github.com/s3transfer/transferctl/internal/validation"
)

// Client is the backend API used by a session.
type Client interface {
	transfer.Client
	ListFiles(ctx context.Context, bucket string) ([]string, error)
	Upload(ctx context.Context, bucket, filename string, content io.Reader, key string) (string, error)
	Download(ctx context.Context, bucket, key string, w io.Writer) (int64, error)
}

var (
	ErrNoSourceBucket = errors.New("no source bucket selected")
	ErrNoStagedFile   = errors.New("no file staged for upload")
	ErrNoSelectedFile = errors.New("no file selected")

	// ErrUploadInProgress is returned when Upload is called while a previous
	// upload of the same session has not resolved.
	ErrUploadInProgress = errors.New("an upload is already in progress")
)

// Operator-facing messages.
const (
	msgNoSourceBucket   = "Please enter a source bucket name first"
	msgLoadFailed       = "Failed to load files. Check bucket name or AWS credentials."
	msgUploadMissing    = "Please select a file and enter a bucket name"
	msgUploadFailed     = "Upload failed. Please try again."
	msgUploadActive     = "An upload is already in progress"
	msgDownloadMissing  = "Please select a file to download"
	msgDownloadFailed   = "Download failed. Please try again."
	msgTransferMissing  = "Please select source bucket, destination bucket, and file"
	msgTransferActive   = "A transfer is already in progress"
	msgTransferComplete = "File has been successfully transferred to destination bucket"
)

// defaultDownloadName is used when a key has no usable last segment.
const defaultDownloadName = "download"

// StagedFile is a local file waiting to be uploaded.
type StagedFile struct {
	Path string
	Name string
	Size int64
	Key  string // object key override; empty uploads under Name
}

// Step is one entry of the quick-start checklist.
type Step struct {
	Label string
	Done  bool
}

// Snapshot is a copy of the session state for rendering.
type Snapshot struct {
	SourceBucket      string
	DestinationBucket string
	Files             []string
	FilesBucket       string
	SelectedFile      string
	Staged            *StagedFile
	LastError         string
	UploadPercent     int
	Transfer          transfer.Job
	HasTransfer       bool
}

// Options configures a Session.
type Options struct {
	Client       Client
	Recent       *recent.Cache
	Scheduler    schedule.Scheduler // defaults to schedule.Real
	PollInterval time.Duration
	Sinks        []notify.Sink
	Bus          *events.EventBus
	Logger       *logging.Logger

	// OnUploadEstimate observes the synthetic upload percent.
	OnUploadEstimate func(percent int)

	// OnTransferChange observes transfer job transitions.
	OnTransferChange func(transfer.Job)
}

// Session is the dashboard orchestrator.
type Session struct {
	client    Client
	recent    *recent.Cache
	logger    *logging.Logger
	bus       *events.EventBus
	notes     *notify.Queue
	transfers *transfer.Controller
	estimator *progress.Estimator

	mu          sync.Mutex
	source      string
	destination string
	files       []string
	filesBucket string
	selected    string
	staged      *StagedFile
	uploading   bool
	lastError   string
}

// New creates a session with its own notification queue, transfer
// controller and upload estimator.
func New(opts Options) *Session {
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	s := &Session{
		client: opts.Client,
		recent: opts.Recent,
		logger: opts.Logger.Component("dashboard"),
		bus:    opts.Bus,
	}

	s.notes = notify.NewQueue(notify.Options{
		Scheduler: opts.Scheduler,
		Sinks:     opts.Sinks,
		Bus:       opts.Bus,
	})

	onTransfer := opts.OnTransferChange
	s.transfers = transfer.NewController(transfer.Options{
		Client:       opts.Client,
		Scheduler:    opts.Scheduler,
		PollInterval: opts.PollInterval,
		Logger:       opts.Logger,
		Bus:          opts.Bus,
		OnStateChange: func(job transfer.Job) {
			s.onTransferChange(job)
			if onTransfer != nil {
				onTransfer(job)
			}
		},
	})

	s.estimator = progress.NewEstimator(progress.EstimatorOptions{
		Scheduler: opts.Scheduler,
		OnChange:  opts.OnUploadEstimate,
		Bus:       opts.Bus,
		Name:      "upload",
	})

	return s
}

// Notifications exposes the session's notification queue.
func (s *Session) Notifications() *notify.Queue { return s.notes }

// Transfers exposes the session's transfer controller.
func (s *Session) Transfers() *transfer.Controller { return s.transfers }

// SetSourceBucket selects the bucket to list, upload to and download from.
// A non-blank name is remembered in the recent buckets list.
func (s *Session) SetSourceBucket(name string) {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	s.source = name
	s.mu.Unlock()
	s.remember(name)
}

// SetDestinationBucket selects the transfer target.
func (s *Session) SetDestinationBucket(name string) {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	s.destination = name
	s.mu.Unlock()
	s.remember(name)
}

func (s *Session) remember(name string) {
	if s.recent == nil || name == "" {
		return
	}
	if err := s.recent.Record(name); err != nil {
		s.logger.Warn().Err(err).Str("bucket", name).Msg("failed to save recent bucket")
	}
}

// LoadFiles lists the source bucket.
func (s *Session) LoadFiles(ctx context.Context) error {
	s.mu.Lock()
	bucket := s.source
	s.mu.Unlock()
	return s.LoadFilesFor(ctx, bucket)
}

// LoadFilesFor lists bucket. A blank name only produces a warning.
func (s *Session) LoadFilesFor(ctx context.Context, bucket string) error {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		s.notes.Notify(msgNoSourceBucket, notify.SeverityWarning)
		return ErrNoSourceBucket
	}

	files, err := s.client.ListFiles(ctx, bucket)
	if err != nil {
		s.logger.Error().Err(err).Str("bucket", bucket).Msg("list files failed")
		s.fail(msgLoadFailed)
		s.publishFilesLoaded(bucket, 0, err)
		return fmt.Errorf("failed to list %q: %w", bucket, err)
	}

	s.mu.Lock()
	s.files = append([]string(nil), files...)
	s.filesBucket = bucket
	s.lastError = ""
	s.mu.Unlock()

	s.publishFilesLoaded(bucket, len(files), nil)
	if len(files) > 0 {
		s.notes.Notify(fmt.Sprintf("Found %d files in %q", len(files), bucket), notify.SeveritySuccess)
	} else {
		s.notes.Notify(fmt.Sprintf("Bucket %q is empty or newly created", bucket), notify.SeveritySuccess)
	}
	return nil
}

func (s *Session) publishFilesLoaded(bucket string, count int, err error) {
	ev := &events.FilesLoadedEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventFilesLoaded, Time: time.Now()},
		Bucket:    bucket,
		Count:     count,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(ev)
}

// StageFile picks a local file for the next upload. Only its metadata is
// read.
func (s *Session) StageFile(path string) (StagedFile, error) {
	return s.StageFileAs(path, "")
}

// StageFileAs is StageFile with an explicit object key.
func (s *Session) StageFileAs(path, key string) (StagedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		s.notes.Notify(fmt.Sprintf("Cannot read %q", path), notify.SeverityError)
		return StagedFile{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		s.notes.Notify(fmt.Sprintf("%q is a directory", path), notify.SeverityWarning)
		return StagedFile{}, fmt.Errorf("%s is a directory", path)
	}

	staged := StagedFile{Path: path, Name: info.Name(), Size: info.Size(), Key: strings.TrimSpace(key)}
	s.mu.Lock()
	s.staged = &staged
	s.mu.Unlock()

	s.notes.Notify(fmt.Sprintf("%q ready for upload", staged.Name), notify.SeverityInfo)
	return staged, nil
}

// Upload sends the staged file to the source bucket while the estimator
// shows synthetic progress. On success the bucket is remembered, the staged
// file is cleared and the file list is reloaded.
func (s *Session) Upload(ctx context.Context) error {
	s.mu.Lock()
	bucket := s.source
	staged := s.staged
	s.mu.Unlock()

	if staged == nil || bucket == "" {
		s.notes.Notify(msgUploadMissing, notify.SeverityWarning)
		if staged == nil {
			return ErrNoStagedFile
		}
		return ErrNoSourceBucket
	}

	// The estimator tracks one request at a time.
	s.mu.Lock()
	if s.uploading {
		s.mu.Unlock()
		s.notes.Notify(msgUploadActive, notify.SeverityWarning)
		return ErrUploadInProgress
	}
	s.uploading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.uploading = false
		s.mu.Unlock()
	}()

	err := s.estimator.Track(ctx, func(ctx context.Context) error {
		f, err := os.Open(staged.Path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", staged.Path, err)
		}
		defer f.Close()
		_, err = s.client.Upload(ctx, bucket, staged.Name, f, staged.Key)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Str("bucket", bucket).Str("file", staged.Name).Msg("upload failed")
		s.fail(msgUploadFailed)
		return fmt.Errorf("upload of %s failed: %w", staged.Name, err)
	}

	s.logger.Info().Str("bucket", bucket).Str("file", staged.Name).Int64("size", staged.Size).Msg("upload complete")
	s.remember(bucket)

	s.mu.Lock()
	if s.staged == staged {
		s.staged = nil
	}
	s.lastError = ""
	s.mu.Unlock()

	s.notes.Notify(fmt.Sprintf("%q uploaded successfully", staged.Name), notify.SeveritySuccess)

	if err := s.LoadFilesFor(ctx, bucket); err != nil {
		s.logger.Warn().Err(err).Msg("reload after upload failed")
	}
	return nil
}

// UploadPercent returns the current synthetic upload estimate.
func (s *Session) UploadPercent() int {
	return s.estimator.Percent()
}

// SelectFile chooses the key used by Download and StartTransfer.
func (s *Session) SelectFile(key string) {
	s.mu.Lock()
	s.selected = strings.TrimSpace(key)
	s.mu.Unlock()
}

// Download saves the selected file into destDir under the last segment of
// its key and returns the written path. No retry is attempted.
func (s *Session) Download(ctx context.Context, destDir string) (string, error) {
	s.mu.Lock()
	bucket := s.source
	key := s.selected
	s.mu.Unlock()

	if key == "" || bucket == "" {
		s.notes.Notify(msgDownloadMissing, notify.SeverityWarning)
		if key == "" {
			return "", ErrNoSelectedFile
		}
		return "", ErrNoSourceBucket
	}

	target, err := validation.DownloadTarget(destDir, DownloadName(key))
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("refusing download target")
		s.fail(msgDownloadFailed)
		return "", fmt.Errorf("invalid download target for %s: %w", key, err)
	}
	if err := s.downloadTo(ctx, bucket, key, target); err != nil {
		s.logger.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("download failed")
		s.fail(msgDownloadFailed)
		return "", err
	}

	s.logger.Info().Str("bucket", bucket).Str("key", key).Str("path", target).Msg("download complete")
	s.notes.Notify(fmt.Sprintf("%q downloaded successfully", key), notify.SeveritySuccess)
	return target, nil
}

// downloadTo writes into a temp file next to target and renames it into
// place, so a failed download never leaves a partial file behind.
func (s *Session) downloadTo(ctx context.Context, bucket, key, target string) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".transferctl-*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, err = s.client.Download(ctx, bucket, key, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close temp file: %w", cerr)
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download of %s failed: %w", key, err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save %s: %w", target, err)
	}
	return nil
}

// DownloadName returns the local file name for key: its last path segment,
// or "download" when that segment is empty or unusable.
func DownloadName(key string) string {
	name := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		name = key[i+1:]
	}
	name = strings.ReplaceAll(name, `\`, "_")
	switch name {
	case "", ".", "..":
		return defaultDownloadName
	}
	return name
}

// StartTransfer submits the selected file from source to destination.
// Terminal states are reported asynchronously through the notification
// queue.
func (s *Session) StartTransfer(ctx context.Context) (transfer.Job, error) {
	s.mu.Lock()
	source, destination, key := s.source, s.destination, s.selected
	s.mu.Unlock()

	job, err := s.transfers.Submit(ctx, source, destination, key)
	switch {
	case err == nil:
		s.notes.Notify(fmt.Sprintf("Transfer of %q started", key), notify.SeverityInfo)
	case errors.Is(err, transfer.ErrMissingField):
		s.notes.Notify(msgTransferMissing, notify.SeverityWarning)
	case errors.Is(err, transfer.ErrJobAlreadyActive):
		s.notes.Notify(msgTransferActive, notify.SeverityWarning)
	}
	// Submission failures are reported by onTransferChange.
	return job, err
}

func (s *Session) onTransferChange(job transfer.Job) {
	switch job.State {
	case transfer.StateCompleted:
		s.notes.Notify(msgTransferComplete, notify.SeveritySuccess)
	case transfer.StateError:
		s.fail(job.Err)
	}
}

// fail records msg as the last error and shows it.
func (s *Session) fail(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
	s.notes.Notify(msg, notify.SeverityError)
}

// Steps reports the quick-start checklist.
func (s *Session) Steps() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []Step{
		{Label: "Source bucket", Done: s.source != ""},
		{Label: "Files loaded", Done: len(s.files) > 0},
		{Label: "Destination bucket", Done: s.destination != ""},
		{Label: "File selected", Done: s.selected != ""},
	}
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		SourceBucket:      s.source,
		DestinationBucket: s.destination,
		Files:             append([]string(nil), s.files...),
		FilesBucket:       s.filesBucket,
		SelectedFile:      s.selected,
		LastError:         s.lastError,
	}
	if s.staged != nil {
		staged := *s.staged
		snap.Staged = &staged
	}
	s.mu.Unlock()

	snap.UploadPercent = s.estimator.Percent()
	snap.Transfer, snap.HasTransfer = s.transfers.Current()
	return snap
}

// Close stops transfer polling, pending estimator ticks and the
// notification timer.
func (s *Session) Close() {
	s.transfers.Close()
	s.estimator.Close()
	s.notes.Close()
}
