/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"inkdraw/internal/pagefile"
)

const (
	// FolderName is the vault folder new drawings are created in.
	FolderName     = "Ink"
	BackupsDirName = "backups"
	DrawingExt     = "drawing"
	WritingExt     = "writing"

	// DefaultBackupKeep is how many backups per file are retained.
	DefaultBackupKeep = 10

	backupStamp = "20060102-150405.000000"
)

var (
	// ErrNotFound is returned when a file and all of its backups are missing.
	ErrNotFound = errors.New("storage: file not found")
	// ErrOutsideVault is returned for paths that escape the vault root.
	ErrOutsideVault = errors.New("storage: path outside vault")
	// ErrExists is returned when a destination file already exists.
	ErrExists = errors.New("storage: file exists")
)

// Vault is a directory of ink files. Paths passed to its methods are
// slash-separated and relative to Root.
type Vault struct {
	Root       string
	BackupKeep int
	// Now is the clock used for file names and backups; defaults to time.Now.
	Now func() time.Time
}

// OpenVault opens or creates the vault at root and scaffolds its folders.
func OpenVault(root string) (*Vault, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("vault root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	for _, d := range []string{abs, filepath.Join(abs, FolderName), filepath.Join(abs, BackupsDirName)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create vault dir %s: %w", d, err)
		}
	}
	return &Vault{Root: abs, BackupKeep: DefaultBackupKeep, Now: time.Now}, nil
}

func (v *Vault) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}

// Abs resolves a vault-relative path.
func (v *Vault) Abs(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideVault, rel)
	}
	return filepath.Join(v.Root, clean), nil
}

// Rel converts an absolute path inside the vault to its slash-separated relative form.
func (v *Vault) Rel(abs string) (string, error) {
	r, err := filepath.Rel(v.Root, abs)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideVault, abs)
	}
	return filepath.ToSlash(r), nil
}

// Exists reports whether rel exists.
func (v *Vault) Exists(rel string) bool {
	p, err := v.Abs(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// WriteFile replaces rel with data using a temp file and rename. With backup
// set, the previous content is first copied to a timestamped backup and old
// backups beyond BackupKeep are pruned.
func (v *Vault) WriteFile(rel string, data []byte, backup bool) error {
	path, err := v.Abs(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	if backup {
		if _, statErr := os.Stat(path); statErr == nil {
			bpath := filepath.Join(v.Root, BackupsDirName, backupName(rel, v.now()))
			if cerr := copyFile(path, bpath); cerr != nil {
				return fmt.Errorf("backup current file: %w", cerr)
			}
			v.pruneBackups(rel)
		}
	}

	temp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp file: %w", werr)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		// Windows cannot rename over an existing file
		_ = os.Remove(path)
		if rerr = os.Rename(temp, path); rerr != nil {
			_ = os.Remove(temp)
			return fmt.Errorf("replace file: %w", rerr)
		}
	}
	return nil
}

// ReadFile returns the content of rel.
func (v *Vault) ReadFile(rel string) ([]byte, error) {
	path, err := v.Abs(rel)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	return b, err
}

// ReadDrawing reads and parses rel. When the file is missing or does not
// parse, the newest backup that parses is returned instead.
func (v *Vault) ReadDrawing(rel string) (pagefile.InkFileData, error) {
	b, rerr := v.ReadFile(rel)
	if rerr == nil {
		d, perr := pagefile.Parse(b)
		if perr == nil {
			return d, nil
		}
		rerr = perr
	}
	d, berr := v.latestBackup(rel)
	if berr != nil {
		if errors.Is(rerr, ErrNotFound) {
			return pagefile.InkFileData{}, rerr
		}
		return pagefile.InkFileData{}, fmt.Errorf("read %s: %w; backup attempt: %v", rel, rerr, berr)
	}
	return d, nil
}

// WriteDrawing marshals d and writes it to rel.
func (v *Vault) WriteDrawing(rel string, d pagefile.InkFileData, backup bool) error {
	b, err := pagefile.Marshal(d)
	if err != nil {
		return err
	}
	return v.WriteFile(rel, append(b, '\n'), backup)
}

// Rename moves oldRel to newRel. It fails with ErrExists when newRel is taken.
func (v *Vault) Rename(oldRel, newRel string) error {
	from, err := v.Abs(oldRel)
	if err != nil {
		return err
	}
	to, err := v.Abs(newRel)
	if err != nil {
		return err
	}
	if _, err := os.Stat(to); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, newRel)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Copy duplicates oldRel to newRel. It fails with ErrExists when newRel is taken.
func (v *Vault) Copy(oldRel, newRel string) error {
	from, err := v.Abs(oldRel)
	if err != nil {
		return err
	}
	to, err := v.Abs(newRel)
	if err != nil {
		return err
	}
	if _, err := os.Stat(from); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, oldRel)
	}
	if _, err := os.Stat(to); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, newRel)
	}
	return copyFile(from, to)
}

// List returns the ink files under the vault folder, sorted.
func (v *Vault) List() ([]string, error) {
	var out []string
	base := filepath.Join(v.Root, FolderName)
	err := filepath.WalkDir(base, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != base {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.TrimPrefix(filepath.Ext(p), ".")
		if ext != DrawingExt && ext != WritingExt {
			return nil
		}
		rel, rerr := v.Rel(p)
		if rerr != nil {
			return rerr
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list vault: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// Backups returns the backup files of rel, oldest first.
func (v *Vault) Backups(rel string) ([]string, error) {
	bdir := filepath.Join(v.Root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := backupPrefix(rel)
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

func (v *Vault) pruneBackups(rel string) {
	keep := v.BackupKeep
	if keep <= 0 {
		return
	}
	all, err := v.Backups(rel)
	if err != nil || len(all) <= keep {
		return
	}
	for _, p := range all[:len(all)-keep] {
		_ = os.Remove(p)
	}
}

func (v *Vault) latestBackup(rel string) (pagefile.InkFileData, error) {
	cands, err := v.Backups(rel)
	if err != nil {
		return pagefile.InkFileData{}, err
	}
	if len(cands) == 0 {
		return pagefile.InkFileData{}, errors.New("no backups found")
	}
	var lastErr error
	for i := len(cands) - 1; i >= 0; i-- {
		b, err := os.ReadFile(cands[i])
		if err != nil {
			lastErr = err
			continue
		}
		d, err := pagefile.Parse(b)
		if err != nil {
			lastErr = err
			continue
		}
		return d, nil
	}
	return pagefile.InkFileData{}, fmt.Errorf("no readable backup: %w", lastErr)
}

func backupPrefix(rel string) string {
	return strings.ReplaceAll(filepath.ToSlash(filepath.Clean(rel)), "/", "__") + "."
}

func backupName(rel string, ts time.Time) string {
	return backupPrefix(rel) + ts.Format(backupStamp) + ".bak"
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
