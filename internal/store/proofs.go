package store

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"rifa/internal/status"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/filesystem"
)

const proofsPrefix = "comprobantes"

// ProofStore saves payment proof images on a PocketBase filesystem
// (local directory or S3, depending on how it is opened).
type ProofStore struct {
	open func() (*filesystem.System, error)
}

// NewAppProofStore stores proofs in the app filesystem, honoring its S3 settings.
func NewAppProofStore(app core.App) *ProofStore {
	return &ProofStore{open: app.NewFilesystem}
}

func NewLocalProofStore(dir string) *ProofStore {
	return &ProofStore{open: func() (*filesystem.System, error) {
		return filesystem.NewLocal(dir)
	}}
}

// ValidateProof accepts images up to maxSize bytes, sniffing the content
// instead of trusting the client supplied type.
func ValidateProof(file *filesystem.File, maxSize int64) error {
	if file.Size > maxSize {
		return status.ErrProofTooLarge
	}

	r, err := file.Reader.Open()
	if err != nil {
		return fmt.Errorf("open comprobante: %w", err)
	}
	defer r.Close()

	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return fmt.Errorf("detect comprobante type: %w", err)
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return status.ErrProofNotImage
	}

	return nil
}

// Save uploads the file and returns its storage key.
func (p *ProofStore) Save(file *filesystem.File, number string) (string, error) {
	fsys, err := p.open()
	if err != nil {
		return "", err
	}
	defer fsys.Close()

	key := path.Join(proofsPrefix, number+"_"+file.Name)
	if err := fsys.UploadFile(file, key); err != nil {
		return "", fmt.Errorf("upload comprobante: %w", err)
	}
	return key, nil
}

func (p *ProofStore) Serve(w http.ResponseWriter, r *http.Request, key string) error {
	if key == "" {
		return status.ErrProofNotFound
	}

	fsys, err := p.open()
	if err != nil {
		return err
	}
	defer fsys.Close()

	exists, err := fsys.Exists(key)
	if err != nil {
		return err
	}
	if !exists {
		return status.ErrProofNotFound
	}

	return fsys.Serve(w, r, key, path.Base(key))
}

func (p *ProofStore) Delete(key string) error {
	if key == "" {
		return nil
	}

	fsys, err := p.open()
	if err != nil {
		return err
	}
	defer fsys.Close()

	exists, err := fsys.Exists(key)
	if err != nil || !exists {
		return err
	}
	return fsys.Delete(key)
}
