package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

type ZipPacker struct{}

func NewZipPacker() *ZipPacker {
	return &ZipPacker{}
}

// Name returns the packer name
func (p *ZipPacker) Name() string {
	return "ZIP"
}

// Pack zips srcDir into dest. The archive is written to a temporary file
// next to dest and renamed into place once complete.
func (p *ZipPacker) Pack(ctx context.Context, srcDir, dest string) error {
	srcDir = filepath.Clean(srcDir)
	info, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", srcDir)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := p.write(ctx, tmp, srcDir, dest); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	return os.Rename(tmp.Name(), dest)
}

func (p *ZipPacker) write(ctx context.Context, out io.Writer, srcDir, dest string) error {
	zw := zip.NewWriter(out)
	root := filepath.Dir(srcDir)
	absDest, _ := filepath.Abs(dest)

	err := filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		if d.IsDir() {
			_, err := zw.Create(name + "/")
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		// the archive may live inside the directory it packs
		if abs, _ := filepath.Abs(path); abs == absDest || strings.HasPrefix(d.Name(), "."+filepath.Base(dest)+".") {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(fi)
		if err != nil {
			return err
		}
		hdr.Name = name
		hdr.Method = zip.Deflate

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		return copyFile(w, path)
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("zip %s: %w", srcDir, err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
