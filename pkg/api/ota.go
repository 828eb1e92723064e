package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/itohio/keyclimate/pkg/store"
)

// MaxImageSize bounds a firmware upload.
const MaxImageSize = 16 << 20

// saveImage streams body into a new file under dir.
func saveImage(dir string, body io.Reader) (store.Image, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return store.Image{}, fmt.Errorf("create %s: %w", dir, err)
	}

	id := uuid.NewString()
	path := filepath.Join(dir, id+".bin")
	f, err := os.Create(path)
	if err != nil {
		return store.Image{}, fmt.Errorf("create image: %w", err)
	}

	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return store.Image{}, fmt.Errorf("write image: %w", err)
	}
	if n == 0 {
		_ = os.Remove(path)
		return store.Image{}, errors.New("empty image")
	}

	return store.Image{
		ID:       id,
		Path:     path,
		Size:     n,
		Uploaded: time.Now(),
	}, nil
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	log.Printf("api: receiving firmware image")
	img, err := saveImage(s.opts.OTADir, http.MaxBytesReader(w, r.Body, MaxImageSize))
	if err != nil {
		log.Printf("api: ota: %v", err)
		http.Error(w, "OTA failed", http.StatusInternalServerError)
		return
	}

	if s.opts.Images != nil {
		if err := s.opts.Images.PutImage(img); err != nil {
			log.Printf("api: ota: record image: %v", err)
			_ = os.Remove(img.Path)
			http.Error(w, "OTA failed", http.StatusInternalServerError)
			return
		}
	}

	log.Printf("api: firmware image %s stored (%s)", img.ID, humanize.Bytes(uint64(img.Size)))
	_, _ = io.WriteString(w, "OTA OK")

	if s.opts.Restart != nil {
		s.opts.Restart()
	}
}

func (s *Server) listImages(w http.ResponseWriter, r *http.Request) {
	if s.opts.Images == nil {
		writeJSON(w, []store.Image{})
		return
	}
	images, err := s.opts.Images.Images()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if images == nil {
		images = []store.Image{}
	}
	writeJSON(w, images)
}
