package cli

import (
	"io"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/matzehuels/pmux/pkg/integrations"
	"github.com/matzehuels/pmux/pkg/pin"
)

// newDownloadProgress renders one progress bar per tarball download on w.
func newDownloadProgress(w io.Writer) pin.ProgressFactory {
	return func(name, version string) integrations.ProgressFunc {
		return func(r io.Reader, size int64) io.Reader {
			if size < 0 {
				size = 0
			}
			p := mpb.New(mpb.WithOutput(w), mpb.WithWidth(40))
			bar := p.New(size,
				mpb.BarStyle().Rbound("|"),
				mpb.PrependDecorators(
					decor.Name(name+"@"+version+" "),
					decor.Counters(decor.SizeB1024(0), "% .2f / % .2f"),
				),
				mpb.AppendDecorators(
					decor.Percentage(decor.WCSyncSpace),
				),
			)
			return &barReader{r: bar.ProxyReader(r), bar: bar, p: p}
		}
	}
}

// barReader finishes its bar when the body is exhausted or fails.
type barReader struct {
	r    io.ReadCloser
	bar  *mpb.Bar
	p    *mpb.Progress
	once sync.Once
}

func (b *barReader) Read(buf []byte) (int, error) {
	n, err := b.r.Read(buf)
	if err != nil {
		b.once.Do(func() {
			if err == io.EOF {
				b.bar.SetTotal(-1, true)
			} else {
				b.bar.Abort(false)
			}
			b.p.Wait()
		})
	}
	return n, err
}
