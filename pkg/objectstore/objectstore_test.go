package objectstore

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_UploadAndGet(t *testing.T) {
	s := NewMemoryStore("http://localhost:8080/files/")
	ctx := context.Background()

	url, err := s.Upload(ctx, "avatars/u1/a.png", bytes.NewReader([]byte("png-bytes")), "")
	if err != nil {
		t.Fatalf("Upload 失败: %v", err)
	}
	if url != "http://localhost:8080/files/avatars/u1/a.png" {
		t.Errorf("URL 不符: %s", url)
	}

	obj, err := s.Get("avatars/u1/a.png")
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if string(obj.Data) != "png-bytes" {
		t.Errorf("内容不符: %s", obj.Data)
	}
	if obj.ContentType != "image/png" {
		t.Errorf("期望按扩展名推断 image/png，实际 %s", obj.ContentType)
	}

	s.Delete(ctx, "avatars/u1/a.png")
	if _, err := s.Get("avatars/u1/a.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("删除后期望 ErrNotFound，实际: %v", err)
	}
}

func TestImageExtension(t *testing.T) {
	cases := map[string]struct {
		ext string
		ok  bool
	}{
		"image/png":                {".png", true},
		"IMAGE/JPEG":               {".jpg", true},
		"image/webp; charset=utf8": {".webp", true},
		"application/pdf":          {"", false},
	}
	for ct, want := range cases {
		ext, ok := ImageExtension(ct)
		if ext != want.ext || ok != want.ok {
			t.Errorf("%s: 期望 (%s,%v)，实际 (%s,%v)", ct, want.ext, want.ok, ext, ok)
		}
	}
}

func TestKey(t *testing.T) {
	if got := Key("events", "e1", "poster.png"); got != "events/e1/poster.png" {
		t.Errorf("Key 拼接不符: %s", got)
	}
}
