// Package raster turns an uploaded source document into page images.
// Every page yields two representations derived from the identical
// source region: a maximal-fidelity master PNG for display and print,
// and a downscaled JPEG small enough for the recognition service. The
// two are required to diverge in resolution and format so the master
// never loses fidelity while the analysis copy stays cheap to ship.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"DF-FIDELITY/internal/errs"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/image/draw"
	"k8s.io/klog/v2"
)

const (
	// analysisMaxDim bounds the longest edge of the analysis copy.
	analysisMaxDim = 1600
	// analysisQuality is the JPEG quality of the analysis copy.
	analysisQuality = 80
)

// Page holds both representations of one source page.
type Page struct {
	MasterPNG    []byte
	AnalysisJPEG []byte
	Width        int
	Height       int
}

// Rasterize converts a PDF or raster image source into pages. An
// unreadable or unsupported source returns a RenderError, terminal for
// this upload attempt.
func Rasterize(source []byte, mimeType string) ([]Page, error) {
	switch {
	case mimeType == "application/pdf":
		return rasterizePDF(source)
	case strings.HasPrefix(mimeType, "image/"):
		page, err := rasterizeImage(source)
		if err != nil {
			return nil, err
		}
		return []Page{*page}, nil
	default:
		return nil, errs.NewRenderError(fmt.Sprintf("unsupported source type %q", mimeType), nil)
	}
}

func rasterizeImage(source []byte) (*Page, error) {
	img, format, err := image.Decode(bytes.NewReader(source))
	if err != nil {
		return nil, errs.NewRenderError("source image is unreadable", err)
	}
	klog.V(4).Infof("decoded %s source %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())
	return buildPage(img)
}

func rasterizePDF(source []byte) ([]Page, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(source), conf)
	if err != nil {
		return nil, errs.NewRenderError("source PDF is unreadable", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, errs.NewRenderError("failed to determine PDF page count", err)
	}

	pages := make([]Page, 0, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		img, err := extractPageImage(source, pageNr, conf)
		if err != nil {
			return nil, err
		}
		page, err := buildPage(img)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *page)
	}
	return pages, nil
}

// extractPageImage pulls the largest embedded raster of one PDF page.
// Scanned and exported masters carry the page as a single full-bleed
// image; vector-only pages cannot be rasterized here and are rejected.
func extractPageImage(source []byte, pageNr int, conf *model.Configuration) (image.Image, error) {
	extracted, err := api.ExtractImagesRaw(bytes.NewReader(source), []string{fmt.Sprintf("%d", pageNr)}, conf)
	if err != nil {
		return nil, errs.NewRenderError(fmt.Sprintf("failed to extract images from page %d", pageNr), err)
	}

	var best image.Image
	bestArea := 0
	for _, pageImages := range extracted {
		for _, raw := range pageImages {
			data, err := io.ReadAll(raw)
			if err != nil {
				continue
			}
			img, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				continue
			}
			area := img.Bounds().Dx() * img.Bounds().Dy()
			if area > bestArea {
				best, bestArea = img, area
			}
		}
	}

	if best == nil {
		return nil, errs.NewRenderError(fmt.Sprintf("page %d carries no rasterizable image; export the master as a scanned or image-backed PDF", pageNr), nil)
	}
	return best, nil
}

func buildPage(img image.Image) (*Page, error) {
	bounds := img.Bounds()

	var master bytes.Buffer
	if err := png.Encode(&master, img); err != nil {
		return nil, errs.NewRenderError("failed to encode master image", err)
	}

	var analysis bytes.Buffer
	if err := jpeg.Encode(&analysis, downscale(img, analysisMaxDim), &jpeg.Options{Quality: analysisQuality}); err != nil {
		return nil, errs.NewRenderError("failed to encode analysis image", err)
	}

	return &Page{
		MasterPNG:    master.Bytes(),
		AnalysisJPEG: analysis.Bytes(),
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
	}, nil
}

func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	if w > h {
		h = h * maxDim / w
		w = maxDim
	} else {
		w = w * maxDim / h
		h = maxDim
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
