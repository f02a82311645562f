package sink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/periospot/implantgen/pkg/errors"
)

// ManifestKey is the file the fs store writes after each batch.
const ManifestKey = "manifest.json"

// FS writes objects under a root directory. Each object is staged in a
// temporary file next to its destination and renamed into place once the
// whole batch is staged.
type FS struct {
	root   string
	now    func() time.Time
	rename func(oldpath, newpath string) error
}

// NewFS returns a filesystem store rooted at root, creating it if needed.
func NewFS(root string) (*FS, error) {
	if root == "" {
		return nil, errors.NewConfigError("sink.fs", "dir", "required", root)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", root)
	}
	return &FS{root: root, now: time.Now, rename: os.Rename}, nil
}

func (s *FS) Driver() string   { return DriverFS }
func (s *FS) Location() string { return s.root }

type manifest struct {
	Metadata  map[string]string `json:"metadata,omitempty"`
	Objects   []Info            `json:"objects"`
	CreatedAt time.Time         `json:"created_at"`
}

type staged struct {
	tmp    string
	dest   string
	backup string // previous object at dest, moved aside during publish
	info   Info
}

// WriteAll stages every object, then renames them into place and records
// a manifest. On any failure the directory is left as it was before the
// call, previous objects and manifest included.
func (s *FS) WriteAll(ctx context.Context, objects []Object, meta map[string]string) ([]Info, error) {
	if err := validateKeys(objects); err != nil {
		return nil, err
	}

	var batch []staged
	cleanup := func() {
		for _, st := range batch {
			_ = os.Remove(st.tmp)
		}
	}

	for _, o := range objects {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, err
		}
		st, err := s.stage(o.Key, o.Body)
		if err != nil {
			cleanup()
			return nil, err
		}
		batch = append(batch, st)
	}

	m := manifest{Metadata: meta, CreatedAt: s.now().UTC()}
	for _, st := range batch {
		m.Objects = append(m.Objects, st.info)
	}
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		cleanup()
		return nil, errors.Wrap(err, "encode manifest")
	}
	ms, err := s.stage(ManifestKey, body)
	if err != nil {
		cleanup()
		return nil, err
	}
	batch = append(batch, ms)

	if err := s.publish(batch); err != nil {
		return nil, err
	}
	return m.Objects, nil
}

// publish moves every staged file into place, manifest last. An existing
// destination is first moved to a backup name; the backups are restored if
// any rename fails and removed once the whole batch, manifest included, is
// in place.
func (s *FS) publish(batch []staged) error {
	for i := range batch {
		st := &batch[i]
		if err := s.moveAside(st); err != nil {
			s.restore(batch[:i], batch[i:])
			return errors.Wrapf(err, "back up %s", st.info.Key)
		}
		if err := s.rename(st.tmp, st.dest); err != nil {
			s.restore(batch[:i], batch[i:])
			return errors.Wrapf(err, "publish %s", st.info.Key)
		}
	}
	for _, st := range batch {
		if st.backup != "" {
			_ = os.Remove(st.backup)
		}
	}
	return nil
}

func (s *FS) moveAside(st *staged) error {
	if _, err := os.Lstat(st.dest); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	backup := st.tmp + ".bak"
	if err := s.rename(st.dest, backup); err != nil {
		return err
	}
	st.backup = backup
	return nil
}

// restore removes the published files in done, puts every backup back and
// drops the staged files in pending.
func (s *FS) restore(done, pending []staged) {
	for _, st := range done {
		_ = os.Remove(st.dest)
	}
	for _, st := range append(append([]staged(nil), done...), pending...) {
		if st.backup != "" {
			_ = os.Remove(st.dest)
			_ = os.Rename(st.backup, st.dest)
		}
		_ = os.Remove(st.tmp)
	}
}

func (s *FS) stage(key string, body []byte) (staged, error) {
	dest := filepath.Join(s.root, filepath.FromSlash(filepath.Clean(key)))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return staged{}, errors.Wrapf(err, "create directory for %s", key)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return staged{}, errors.Wrapf(err, "stage %s", key)
	}
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return staged{}, errors.Wrapf(err, "stage %s", key)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return staged{}, errors.Wrapf(err, "sync %s", key)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return staged{}, errors.Wrapf(err, "close %s", key)
	}
	sum := sha256.Sum256(body)
	return staged{
		tmp:  tmp.Name(),
		dest: dest,
		info: Info{Key: key, Size: int64(len(body)), ETag: hex.EncodeToString(sum[:])},
	}, nil
}
