package wral

import (
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

// SealedJournal describes a journal file that has just been sealed
// (trailer written and fsynced) so a SealListener can offload it. The
// core never deletes or moves the file itself — journal files are only
// removed by external operators; a SealListener is one such operator,
// invoked in-process for convenience.
type SealedJournal struct {
	Path       string
	FileNumber uint64
	FirstSeqno uint64
	LastSeqno  uint64
}

// SealListener is notified after a journal file is sealed by rotation, in
// the writer's goroutine, under the writer lock's happens-before edge but
// not the lock itself (rotation has already completed by the time the
// listener runs). The file sealed by Close is not reported.
// A slow or blocking listener delays the writer that triggered rotation
// only up to returning from this call — it does not hold the lock.
type SealListener interface {
	OnSeal(SealedJournal) error
}

// SealListenerFunc adapts a function to a SealListener.
type SealListenerFunc func(SealedJournal) error

func (f SealListenerFunc) OnSeal(s SealedJournal) error { return f(s) }

// S3Archiver uploads sealed journal files to S3 under Prefix, using
// aws-sdk-go's s3manager for multipart-aware, retrying uploads. Errors
// from OnSeal are logged by the caller (the writer core does not treat an
// archival failure as poisoning — the local file remains the durable copy
// until an operator intervenes) but are still returned so a caller that
// wants stricter behavior can wrap this listener.
type S3Archiver struct {
	Uploader *s3manager.Uploader
	Bucket   string
	Prefix   string
}

// NewS3Archiver builds an archiver from a default AWS session/config.
func NewS3Archiver(bucket, prefix string) (*S3Archiver, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, errors.Wrap(err, "wral: creating aws session for archival")
	}
	return &S3Archiver{
		Uploader: s3manager.NewUploader(sess),
		Bucket:   bucket,
		Prefix:   prefix,
	}, nil
}

func (a *S3Archiver) OnSeal(s SealedJournal) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return ioErr("open-for-archive", s.Path, err)
	}
	defer f.Close()

	key := a.Prefix + "/" + filepath.Base(s.Path)
	_, err = a.Uploader.Upload(&s3manager.UploadInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return errors.Wrapf(err, "wral: uploading sealed journal %s to s3://%s/%s", s.Path, a.Bucket, key)
	}
	return nil
}

var _ SealListener = (*S3Archiver)(nil)
