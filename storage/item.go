package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/anoixa/mediastore/database/models"
	"github.com/anoixa/mediastore/utils/pool"
)

// SourceKind Item 的载荷来源
type SourceKind int

const (
	ImageSource SourceKind = iota + 1
	StreamSource
	FileSource
)

func (k SourceKind) String() string {
	switch k {
	case ImageSource:
		return "image"
	case StreamSource:
		return "stream"
	case FileSource:
		return "file"
	default:
		return "unknown"
	}
}

// Item 待保存的媒体载荷，只能消费一次
type Item struct {
	kind SourceKind

	img    image.Image
	format string

	stream io.Reader

	fs   afero.Fs
	path string

	mu       sync.Mutex
	opened   io.Reader
	closers  []io.Closer
	consumed bool
	closed   bool
}

// FromImage 以解码后的图像为载荷，保存时按 format 编码
func FromImage(img image.Image, format string) *Item {
	return &Item{kind: ImageSource, img: img, format: strings.ToLower(format)}
}

// FromStream 以任意流为载荷，Item 关闭时一并关闭可关闭的流
func FromStream(r io.Reader) *Item {
	return &Item{kind: StreamSource, stream: r}
}

// FromFile 以文件系统中的文件为载荷
func FromFile(fs afero.Fs, path string) *Item {
	return &Item{kind: FileSource, fs: fs, path: path}
}

// Kind 载荷来源
func (it *Item) Kind() SourceKind {
	return it.kind
}

// open 按来源打开顺序读取流
func (it *Item) open() (io.Reader, error) {
	if it.opened != nil {
		return it.opened, nil
	}

	switch it.kind {
	case ImageSource:
		if it.img == nil {
			return nil, fmt.Errorf("image item has no image")
		}
		var buf bytes.Buffer
		if err := encodeImage(&buf, it.img, it.format); err != nil {
			return nil, err
		}
		it.opened = bytes.NewReader(buf.Bytes())
	case StreamSource:
		if it.stream == nil {
			return nil, fmt.Errorf("stream item has no stream")
		}
		if c, ok := it.stream.(io.Closer); ok {
			it.closers = append(it.closers, c)
		}
		it.opened = it.stream
	case FileSource:
		f, err := it.fs.Open(it.path)
		if err != nil {
			return nil, fmt.Errorf("failed to open source file '%s': %w", it.path, err)
		}
		it.closers = append(it.closers, f)
		it.opened = f
	default:
		return nil, fmt.Errorf("unsupported item source: %d", it.kind)
	}
	return it.opened, nil
}

// SourceStream 返回可定位的载荷视图，不可定位的流会先读入内存
func (it *Item) SourceStream() (io.ReadSeeker, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return nil, ErrItemConsumed
	}

	r, err := it.open()
	if err != nil {
		return nil, err
	}
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer item stream: %w", err)
	}
	rs := bytes.NewReader(data)
	it.opened = rs
	return rs, nil
}

// SaveTo 将载荷写入 w，并把写入的长度记录到 media.Size
func (it *Item) SaveTo(ctx context.Context, w io.Writer, media *models.MediaFile) (int64, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.consumed || it.closed {
		return 0, ErrItemConsumed
	}
	it.consumed = true

	r, err := it.open()
	if err != nil {
		return 0, err
	}

	bufPtr := pool.SharedBufferPool.Get().(*[]byte)
	defer pool.SharedBufferPool.Put(bufPtr)

	n, err := io.CopyBuffer(w, &ctxReader{ctx: ctx, r: r}, *bufPtr)
	if err != nil {
		return n, fmt.Errorf("failed to copy %s item: %w", it.kind, err)
	}

	if media != nil {
		media.Size = n
	}
	return n, nil
}

// Close 释放载荷持有的资源，可重复调用
func (it *Item) Close() error {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return nil
	}
	it.closed = true

	var firstErr error
	for _, c := range it.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	it.closers = nil
	it.opened = nil
	it.img = nil
	return firstErr
}

// pipeTo 把载荷以流的形式交给只接受 io.Reader 的写入方
func (it *Item) pipeTo(ctx context.Context, media *models.MediaFile, write func(io.Reader) error) error {
	pr, pw := io.Pipe()
	done := make(chan error, 1)

	go func() {
		_, err := it.SaveTo(ctx, pw, media)
		_ = pw.CloseWithError(err)
		done <- err
	}()

	werr := write(pr)
	_ = pr.CloseWithError(werr)
	serr := <-done

	if werr != nil {
		return werr
	}
	return serr
}

// encodeImage 按格式编码图像，未知格式回退为 PNG
func encodeImage(w io.Writer, img image.Image, format string) error {
	var err error
	switch format {
	case "jpeg", "jpg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case "gif":
		err = gif.Encode(w, img, nil)
	case "bmp":
		err = bmp.Encode(w, img)
	case "tiff", "tif":
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = png.Encode(w, img)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s image: %w", format, err)
	}
	return nil
}

// ctxReader 读取前检查上下文是否已取消
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
