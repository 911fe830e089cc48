package wral

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"
)

// dirLock is an advisory, single-process lock file enforcing that at most
// one writer holds a given log directory open at a time, across separate
// Wal handles opening the same directory. It is not a substitute for
// flock(2) against another host on a shared filesystem — it protects
// against the common local mistake of opening the same directory twice in
// one process tree.
type dirLock struct {
	path string
}

// acquireDirLock creates "wral-<name>.lock" with O_EXCL, tagging it with a
// random owner token so a stale lock left behind by a crashed process can
// be identified (and removed) by an operator without guessing.
func acquireDirLock(dir, name string) (*dirLock, error) {
	token, err := uuid.GenerateUUID()
	if err != nil {
		return nil, errors.Wrap(err, "wral: generating lock owner token")
	}
	path := filepath.Join(dir, fmt.Sprintf("wral-%s.lock", name))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			owner, _ := os.ReadFile(path)
			return nil, errors.Errorf("wral: directory %s is already locked (owner token %s); remove %s if the prior process is confirmed dead", dir, owner, path)
		}
		return nil, ioErr("create-lock", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(token); err != nil {
		os.Remove(path)
		return nil, ioErr("write-lock", path, err)
	}
	return &dirLock{path: path}, nil
}

func (l *dirLock) release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return ioErr("remove-lock", l.path, err)
	}
	return nil
}
