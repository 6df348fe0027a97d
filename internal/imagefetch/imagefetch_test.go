package imagefetch

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/metrics"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: uint8(60 * x)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeGIF(t *testing.T) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	pngData, gifData := encodePNG(t), encodeGIF(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, r *http.Request) { w.Write(pngData) })
	mux.HandleFunc("/ok.gif", func(w http.ResponseWriter, r *http.Request) { w.Write(gifData) })
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not an image</html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func rec(id int, url string) model.Record {
	r := model.NewRecord()
	r.ID = id
	r.ImageURL = url
	return r
}

func TestDownload(t *testing.T) {
	srv := imageServer(t)
	dir := filepath.Join(t.TempDir(), "images")
	m := metrics.NewRun()
	f := New(Options{Dir: dir, Workers: 3}, discard(), m)
	require.NoError(t, f.Prepare())

	records := []model.Record{
		rec(0, srv.URL+"/ok.png"),
		rec(1, srv.URL+"/missing.jpg"),
		rec(2, srv.URL+"/ok.gif"),
		rec(3, srv.URL+"/page.html"),
	}
	failed := f.Download(context.Background(), records)
	assert.Equal(t, []int{1, 3}, failed)

	for _, id := range []int{0, 2} {
		b, err := os.ReadFile(f.Path(id))
		require.NoError(t, err)
		img, err := jpeg.Decode(bytes.NewReader(b))
		require.NoError(t, err, "id %d is a JPEG", id)
		assert.NotEmpty(t, img.Bounds())
	}
	for _, id := range []int{1, 3} {
		assert.NoFileExists(t, f.Path(id))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files left behind")
	assert.Contains(t, m.Snapshot(), "space_images_image_failures_total{} 2")
	assert.Contains(t, m.Snapshot(), "space_images_images_saved_total{} 2")
}

func TestDownload_OneOfThreeFailsAndIsPruned(t *testing.T) {
	srv := imageServer(t)
	f := New(Options{Dir: t.TempDir()}, discard(), nil)

	records := []model.Record{
		rec(0, srv.URL+"/ok.png"),
		rec(1, srv.URL+"/broken"),
		rec(2, srv.URL+"/ok.gif"),
	}
	failed := f.Download(context.Background(), records)
	require.Equal(t, []int{1}, failed)

	kept := Prune(records, failed)
	require.Len(t, kept, 2)
	assert.Equal(t, 0, kept[0].ID)
	assert.Equal(t, 2, kept[1].ID, "ids are not renumbered")
}

func TestDownload_CancelledIsNotAFailure(t *testing.T) {
	srv := imageServer(t)
	m := metrics.NewRun()
	f := New(Options{Dir: t.TempDir()}, discard(), m)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	failed := f.Download(ctx, []model.Record{rec(0, srv.URL+"/ok.png"), rec(1, srv.URL+"/ok.gif")})
	assert.Empty(t, failed)
	assert.NoFileExists(t, f.Path(0))
	assert.Contains(t, m.Snapshot(), "space_images_image_failures_total{} 0")
}

func TestToRGB_FlattensAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.Set(0, 0, color.NRGBA{R: 255, A: 0})
	r, g, b, a := toRGB(src).At(0, 0).RGBA()
	assert.Equal(t, []uint32{0, 0, 0, 0xffff}, []uint32{r, g, b, a})
}

func TestPrune(t *testing.T) {
	records := []model.Record{rec(0, "a"), rec(1, "b"), rec(2, "c"), rec(3, "d"), rec(4, "e")}

	assert.Equal(t, records, Prune(records, nil))

	// ids that no longer match positions after earlier removals
	kept := Prune(Prune(records, []int{0}), []int{3, 4})
	ids := make([]int, 0, len(kept))
	for _, r := range kept {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int{1, 2}, ids)

	assert.Len(t, Prune(records, []int{99}), 5, "unknown ids are ignored")
}

func TestPrepare_Clear(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image_0.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "keep"), 0o755))

	f := New(Options{Dir: dir, Clear: true, ClearPattern: "*.jpg"}, discard(), nil)
	require.NoError(t, f.Prepare())
	assert.NoFileExists(t, filepath.Join(dir, "image_0.jpg"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.DirExists(t, filepath.Join(dir, "keep"))

	f = New(Options{Dir: dir, Clear: true}, discard(), nil)
	require.NoError(t, f.Prepare())
	assert.NoFileExists(t, filepath.Join(dir, "notes.txt"))
	assert.DirExists(t, filepath.Join(dir, "keep"))
}

func TestPrepare_NoClearKeepsFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "images")
	f := New(Options{Dir: dir}, discard(), nil)
	require.NoError(t, f.Prepare())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image_0.jpg"), []byte("x"), 0o644))
	require.NoError(t, f.Prepare())
	assert.FileExists(t, filepath.Join(dir, "image_0.jpg"))
}
