// SFTP storage backend for files served by a web host
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/ryantate/typingpool-sub000/internal/shared"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// RemoteFS is the slice of an SFTP session used by [SFTPStorage].
type RemoteFS interface {
	Create(name string) (io.WriteCloser, error)
	Chmod(name string, mode os.FileMode) error
	Remove(name string) error
	Close() error
}

// Dialer opens a [RemoteFS] session.
type Dialer func(ctx context.Context) (RemoteFS, error)

// SFTPStorage writes files into a directory on an SSH host that a web server exposes at the storage URL.
//
// Each Put or Remove opens its own session so a long-running engine never holds an idle connection.
type SFTPStorage struct {
	Location
	dir  string
	dial Dialer
}

var _ Storage = (*SFTPStorage)(nil)

// NewSFTPStorage connects with the configured private key, verifying the host against known_hosts.
func NewSFTPStorage(cfg shared.StorageConfig) (*SFTPStorage, error) {
	return NewSFTPStorageWithDialer(cfg, func(ctx context.Context) (RemoteFS, error) {
		return dialSFTP(ctx, cfg.SFTP)
	})
}

// NewSFTPStorageWithDialer uses dial to open sessions.
func NewSFTPStorageWithDialer(cfg shared.StorageConfig, dial Dialer) (*SFTPStorage, error) {
	loc, err := NewLocation(cfg.URL)
	if err != nil {
		return nil, err
	}
	return &SFTPStorage{Location: loc, dir: cfg.SFTP.Path, dial: dial}, nil
}

// Put writes each file and makes it world readable.
func (s *SFTPStorage) Put(ctx context.Context, uploads []Upload) ([]string, error) {
	fs, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	defer fs.Close()

	urls := make([]string, 0, len(uploads))
	for _, up := range uploads {
		if err := ctx.Err(); err != nil {
			return urls, err
		}

		remote := path.Join(s.dir, up.Name)
		if err := writeRemote(fs, remote, up.Body); err != nil {
			return urls, fmt.Errorf("%w: put %s: %v", shared.ErrStorage, remote, err)
		}
		urls = append(urls, s.URLForName(up.Name))
	}
	return urls, nil
}

func writeRemote(fs RemoteFS, remote string, body io.Reader) error {
	f, err := fs.Create(remote)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return fs.Chmod(remote, 0o644)
}

// Remove deletes each file, ignoring files that are already gone.
func (s *SFTPStorage) Remove(ctx context.Context, names []string) error {
	fs, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	defer fs.Close()

	for _, name := range names {
		remote := path.Join(s.dir, name)
		if err := fs.Remove(remote); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: remove %s: %v", shared.ErrStorage, remote, err)
		}
	}
	return nil
}

type sftpSession struct {
	client *sftp.Client
	conn   *ssh.Client
}

func (s *sftpSession) Create(name string) (io.WriteCloser, error) {
	return s.client.Create(name)
}

func (s *sftpSession) Chmod(name string, mode os.FileMode) error {
	return s.client.Chmod(name, mode)
}

func (s *sftpSession) Remove(name string) error {
	return s.client.Remove(name)
}

func (s *sftpSession) Close() error {
	return errors.Join(s.client.Close(), s.conn.Close())
}

func dialSFTP(ctx context.Context, cfg shared.SFTPConfig) (RemoteFS, error) {
	key, err := os.ReadFile(expandHome(cfg.KeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	hostKeys, err := knownhosts.New(expandHome(cfg.KnownHosts))
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}

	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	})
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	conn := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to start sftp subsystem: %w", err)
	}

	return &sftpSession{client: client, conn: conn}, nil
}

func expandHome(p string) string {
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return p
}
