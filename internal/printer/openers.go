package printer

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/mind-engage/mindengage-answerbook/internal/storage"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Writer writes the page to w as is.
func Writer(w io.Writer) Opener {
	return OpenerFunc(func(context.Context, string) (io.WriteCloser, error) {
		if w == nil {
			return nil, errors.New("no writer")
		}
		return nopCloser{w}, nil
	})
}

// Blob stores the page under key in bs once it is complete.
func Blob(bs storage.BlobStore, key string) Opener {
	return OpenerFunc(func(context.Context, string) (io.WriteCloser, error) {
		if bs == nil {
			return nil, errors.New("no blob store")
		}
		return &blobWriter{bs: bs, key: key}, nil
	})
}

type blobWriter struct {
	bs  storage.BlobStore
	key string
	buf bytes.Buffer
}

func (b *blobWriter) Write(p []byte) (int, error) { return b.buf.Write(p) }

func (b *blobWriter) Close() error {
	_, err := b.bs.Put(b.key, &b.buf)
	return err
}

// PDF renders the page with headless Chrome and writes the PDF to dst.
// Renderers using it should disable AutoPrint.
func PDF(c *Chrome, dst io.Writer) Opener {
	return OpenerFunc(func(ctx context.Context, _ string) (io.WriteCloser, error) {
		if c == nil {
			return nil, ErrNoChrome
		}
		if err := c.ensure(ctx); err != nil {
			return nil, err
		}
		return &pdfWriter{ctx: ctx, chrome: c, dst: dst}, nil
	})
}

type pdfWriter struct {
	ctx    context.Context
	chrome *Chrome
	dst    io.Writer
	buf    bytes.Buffer
}

func (p *pdfWriter) Write(b []byte) (int, error) { return p.buf.Write(b) }

func (p *pdfWriter) Close() error {
	return p.chrome.RenderPDF(p.ctx, p.buf.String(), p.dst)
}
