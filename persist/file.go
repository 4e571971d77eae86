package persist

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/warp/expense-engine/finance"
	"github.com/warp/expense-engine/logging"
)

const (
	dataFileSuffix  = "_data.txt"
	backupSuffix    = ".backup"
	credentialsFile = "users.txt"
)

// =============================================================================
// FILE STORE - One text file per user in a data directory
// =============================================================================

// FileStore keeps each user's data in <dir>/<username>_data.txt.
type FileStore struct {
	dir string
	log *logging.Logger
}

var _ Repository = (*FileStore)(nil)

// NewFileStore creates dir if needed.
func NewFileStore(dir string, logger *logging.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &finance.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return &FileStore{
		dir: dir,
		log: logging.OrNop(logger).WithComponent(logging.ComponentPersist),
	}, nil
}

func (s *FileStore) Dir() string { return s.dir }

// Path returns the data file of username.
func (s *FileStore) Path(username string) string {
	return filepath.Join(s.dir, username+dataFileSuffix)
}

// BackupPath returns the single-generation backup of username's data file.
func (s *FileStore) BackupPath(username string) string {
	return s.Path(username) + backupSuffix
}

// CredentialsPath returns the shared credential file.
func (s *FileStore) CredentialsPath() string {
	return filepath.Join(s.dir, credentialsFile)
}

// Save overwrites the user's data file with the session contents. The file
// is written next to its destination and renamed into place.
func (s *FileStore) Save(ctx context.Context, user User, session *finance.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := user.Validate(); err != nil {
		return err
	}
	path := s.Path(user.Username)

	tmp, err := os.CreateTemp(s.dir, user.Username+".*.tmp")
	if err != nil {
		return &finance.IOError{Op: "write", Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, session); err != nil {
		tmp.Close()
		return &finance.IOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &finance.IOError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &finance.IOError{Op: "write", Path: path, Err: err}
	}

	s.log.DebugContext(ctx, "data saved", logging.FieldUser, user.Username, logging.FieldPath, path)
	return nil
}

// Load reads the user's data file into session. A missing file leaves the
// session untouched.
func (s *FileStore) Load(ctx context.Context, user User, session *finance.Session) (LoadResult, error) {
	if err := ctx.Err(); err != nil {
		return LoadResult{}, err
	}
	if err := user.Validate(); err != nil {
		return LoadResult{}, err
	}
	path := s.Path(user.Username)

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.InfoContext(ctx, "no data file for user", logging.FieldUser, user.Username)
		return LoadResult{}, nil
	}
	if err != nil {
		return LoadResult{}, &finance.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	result, err := Decode(f, session)
	if err != nil {
		var ioErr *finance.IOError
		if errors.As(err, &ioErr) && ioErr.Path == "" {
			ioErr.Path = path
		}
		return result, err
	}

	for _, sk := range result.Skipped {
		s.log.WarnContext(ctx, "skipped malformed line",
			logging.FieldUser, user.Username, logging.FieldLine, sk.Line,
			"section", sk.Section, "reason", sk.Reason)
	}
	s.log.InfoContext(ctx, "data loaded",
		logging.FieldUser, user.Username,
		"budgets", result.Budgets, "expenses", result.Expenses, "skipped", len(result.Skipped))
	return result, nil
}

// Backup copies the user's data file to its .backup sibling, replacing any
// previous backup.
func (s *FileStore) Backup(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := user.Validate(); err != nil {
		return err
	}
	src := s.Path(user.Username)
	dst := s.BackupPath(user.Username)

	if err := copyFile(src, dst); err != nil {
		return &finance.IOError{Op: "copy", Path: src, Err: err}
	}
	s.log.InfoContext(ctx, "backup created", logging.FieldUser, user.Username, logging.FieldPath, dst)
	return nil
}

// DeleteUserData removes the user's data file. A missing file is fine.
func (s *FileStore) DeleteUserData(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := user.Validate(); err != nil {
		return err
	}
	path := s.Path(user.Username)
	err := os.Remove(path)
	switch {
	case err == nil:
		s.log.InfoContext(ctx, "user data deleted", logging.FieldUser, user.Username)
	case errors.Is(err, os.ErrNotExist):
		s.log.InfoContext(ctx, "no user data to delete", logging.FieldUser, user.Username)
	default:
		return &finance.IOError{Op: "delete", Path: path, Err: err}
	}
	return nil
}

// DeleteUserCredential drops every line of the credential file that equals,
// after trimming, the user's credential line. A missing file is fine.
func (s *FileStore) DeleteUserCredential(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := user.Validate(); err != nil {
		return err
	}
	path := s.CredentialsPath()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &finance.IOError{Op: "read", Path: path, Err: err}
	}

	target := user.CredentialLine()
	var kept []string
	removed := 0
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == target {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	if err := scanner.Err(); err != nil {
		return &finance.IOError{Op: "read", Path: path, Err: err}
	}
	if removed == 0 {
		return nil
	}

	var out strings.Builder
	for _, line := range kept {
		out.WriteString(line)
		out.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(out.String()), 0o600); err != nil {
		return &finance.IOError{Op: "write", Path: path, Err: err}
	}
	s.log.InfoContext(ctx, "credential removed", logging.FieldUser, user.Username)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
