package pack

import (
	"archive/tar"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"studioforge/pkg/types"
)

// A self-contained executable is the launcher binary with an xz-compressed
// tar of the full bundle appended, terminated by a fixed trailer the
// launcher reads to locate its payload:
//
//	[launcher][xz(tar(bundle))][payload size int64 LE][8-byte magic]
var selfExeMagic = [8]byte{'S', 'F', 'P', 'K', 'G', '0', '1', 0}

// assembleSelfExe writes the single-file executable for the manifest. The
// launcher stub is the manifest entry at entryDest; it is excluded from the
// payload since it already forms the file head. The executable is staged
// under a scratch name and renamed into place only once fully written, so
// a failed assembly never leaves a truncated file at outPath.
func assembleSelfExe(m types.BundleManifest, entryDest, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	tmp := outPath + ".partial"
	if err := writeSelfExe(m, entryDest, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, outPath)
}

func writeSelfExe(m types.BundleManifest, entryDest, outPath string) error {
	stub := ""
	for _, e := range m.Entries() {
		if e.Dest == entryDest {
			stub = e.Source
			break
		}
	}
	if stub == "" {
		return fmt.Errorf("manifest has no launcher entry at %s", entryDest)
	}
	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer out.Close()

	sf, err := os.Open(stub)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, sf); err != nil {
		sf.Close()
		return fmt.Errorf("write stub: %w", err)
	}
	sf.Close()

	payloadStart, err := out.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	xw, err := xz.NewWriter(out)
	if err != nil {
		return fmt.Errorf("xz: %w", err)
	}
	tw := tar.NewWriter(xw)
	for _, e := range m.Entries() {
		if e.Dest == entryDest {
			continue
		}
		if err := appendTarFile(tw, e); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := xw.Close(); err != nil {
		return err
	}
	payloadEnd, err := out.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	var trailer [16]byte
	binary.LittleEndian.PutUint64(trailer[:8], uint64(payloadEnd-payloadStart))
	copy(trailer[8:], selfExeMagic[:])
	if _, err := out.Write(trailer[:]); err != nil {
		return err
	}
	return out.Close()
}

func appendTarFile(tw *tar.Writer, e types.ManifestEntry) error {
	f, err := os.Open(e.Source)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:     e.Dest,
		Mode:     int64(fi.Mode().Perm()),
		Size:     fi.Size(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("embed %s: %w", e.Dest, err)
	}
	return nil
}

// ReadSelfExeTrailer validates the trailer of a self-contained executable
// and returns the payload size. Used by the launcher at startup and by
// packaging tests.
func ReadSelfExeTrailer(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if fi.Size() < 16 {
		return 0, fmt.Errorf("%s: too small for a packaged executable", path)
	}
	var trailer [16]byte
	if _, err := f.ReadAt(trailer[:], fi.Size()-16); err != nil {
		return 0, err
	}
	if [8]byte(trailer[8:16]) != selfExeMagic {
		return 0, fmt.Errorf("%s: missing package magic", path)
	}
	return int64(binary.LittleEndian.Uint64(trailer[:8])), nil
}

// ExtractSelfExe unpacks the bundle payload of a self-contained executable
// into destDir. The launcher calls this on first run to materialize the
// application next to its storage directory.
func ExtractSelfExe(exePath, destDir string) error {
	payloadSize, err := ReadSelfExeTrailer(exePath)
	if err != nil {
		return err
	}
	f, err := os.Open(exePath)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	start := fi.Size() - 16 - payloadSize
	if start < 0 {
		return fmt.Errorf("%s: trailer reports payload larger than file", exePath)
	}
	xr, err := xz.NewReader(io.NewSectionReader(f, start, payloadSize))
	if err != nil {
		return fmt.Errorf("xz: %w", err)
	}
	tr := tar.NewReader(xr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		// payloads are produced by this tool; still refuse path escapes
		dest := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if rel, rerr := filepath.Rel(destDir, dest); rerr != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("payload entry %s escapes destination", hdr.Name)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("extract %s: %w", hdr.Name, err)
		}
		if err := out.Close(); err != nil {
			return err
		}
	}
}
