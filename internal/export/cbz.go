/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strings"

	"inkdraw/internal/canvas"
)

// Page is one drawing placed into a multi-page export.
type Page struct {
	Name     string
	Snapshot canvas.Snapshot
}

// CBZOptions controls CBZ export behavior. Pages are rasterized with PNG.
//
//nolint:revive // clarity
type CBZOptions struct {
	Title string
	PNG   PNGOptions
}

// WriteCBZ packages pages as PNG images into a CBZ (ZIP) archive and adds a
// ComicInfo.xml manifest for reader compatibility. Empty pages are skipped.
func WriteCBZ(pages []Page, outPath string, opt CBZOptions) error {
	if !strings.HasSuffix(strings.ToLower(outPath), ".cbz") {
		outPath += ".cbz"
	}
	zw, f, err := createZip(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	pad := len(fmt.Sprint(len(pages)))
	written := 0
	for _, pg := range pages {
		data, _, _, err := RasterizePNG(pg.Snapshot, opt.PNG)
		if errors.Is(err, ErrEmpty) {
			continue
		}
		if err != nil {
			return fmt.Errorf("page %s: %w", pg.Name, err)
		}
		written++
		if err := addZipFile(zw, fmt.Sprintf("%0*d.png", pad, written), data); err != nil {
			return fmt.Errorf("zip add image: %w", err)
		}
	}
	if written == 0 {
		_ = zw.Close()
		_ = f.Close()
		_ = os.Remove(outPath)
		return ErrEmpty
	}
	manifest, err := buildComicInfoXML(opt.Title, written)
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}
	if err := addZipFile(zw, "ComicInfo.xml", manifest); err != nil {
		return fmt.Errorf("zip add manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return f.Close()
}

func createZip(outPath string) (*zip.Writer, *os.File, error) {
	if err := ensureDir(outPath); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create cbz: %w", err)
	}
	return zip.NewWriter(f), f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

type comicInfo struct {
	XMLName   xml.Name `xml:"ComicInfo"`
	Title     string   `xml:"Title,omitempty"`
	PageCount int      `xml:"PageCount"`
	Notes     string   `xml:"Notes"`
}

func buildComicInfoXML(title string, pageCount int) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(comicInfo{Title: title, PageCount: pageCount, Notes: "exported by inkdraw"}); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
