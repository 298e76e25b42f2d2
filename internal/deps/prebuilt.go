package deps

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"studioforge/pkg/types"
)

// PrebuiltStrategy fetches a prebuilt artifact for the target over HTTP.
// The URL may contain {os}, {arch} and {accel} placeholders. Archives
// ending in .tar.gz/.tgz are unpacked into the destination; anything else
// is stored as a single file.
type PrebuiltStrategy struct {
	URL    string
	SHA256 string
	Client *http.Client
}

func (s *PrebuiltStrategy) Name() string { return "prebuilt:" + s.URL }

func (s *PrebuiltStrategy) Acquire(ctx context.Context, target types.BuildTarget, destDir string) error {
	u := expandURL(s.URL, target)
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("prebuilt request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		if isNetworkErr(err) {
			return fmt.Errorf("fetch %s: %w", u, ErrNetworkUnavailable)
		}
		return fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", u, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "studioforge-prebuilt-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("download %s: %w", u, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if s.SHA256 != "" {
		got := hex.EncodeToString(h.Sum(nil))
		if !strings.EqualFold(got, s.SHA256) {
			return fmt.Errorf("checksum mismatch for %s: got %s want %s", u, got, s.SHA256)
		}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	base := filepath.Base(u)
	if strings.HasSuffix(base, ".tar.gz") || strings.HasSuffix(base, ".tgz") {
		return untarGz(tmp.Name(), destDir)
	}
	return copyInto(tmp.Name(), filepath.Join(destDir, base))
}

func expandURL(tpl string, t types.BuildTarget) string {
	r := strings.NewReplacer(
		"{os}", string(t.OS),
		"{arch}", string(t.Arch),
		"{accel}", string(t.Acceleration),
	)
	return r.Replace(tpl)
}

// isNetworkErr reports whether the fetch failed at the transport layer,
// before any response arrived.
func isNetworkErr(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	var oe *net.OpError
	var de *net.DNSError
	return errors.As(err, &oe) || errors.As(err, &de)
}

func untarGz(archive, destDir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}
		name := filepath.Clean(hdr.Name)
		if name == "." || strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			continue
		}
		dest := filepath.Join(destDir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}

func copyInto(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
