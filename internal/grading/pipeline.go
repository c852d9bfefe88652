// Package grading orchestrates preprocessing, VLM/OCR inference,
// fusion, identifier extraction, and annotation into one GradingResult.
package grading

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"dictationgrader/internal/annotate"
	"dictationgrader/internal/config"
	"dictationgrader/internal/fusion"
	"dictationgrader/internal/identifier"
	"dictationgrader/internal/lines"
	"dictationgrader/internal/model"
	"dictationgrader/internal/ocrclient"
	"dictationgrader/internal/preprocess"
	"dictationgrader/internal/store"
	"dictationgrader/internal/vlmclient"
)

// GradingOptions carries the per-request switches layered on top of
// the static Config.
type GradingOptions struct {
	SaveRawArtifacts bool
}

// Pipeline wires the grading core's collaborators together. It holds
// no per-request state; Grade is safe to call concurrently.
type Pipeline struct {
	preprocessor *preprocess.Preprocessor
	vlm          *vlmclient.Client
	ocr          *ocrclient.Client
	lineBuilder  *lines.Builder
	matcher      *fusion.Matcher
	extractor    *identifier.Extractor
	annotator    *annotate.Annotator
	delegate     store.Delegate

	cfg *config.Config
}

// New builds a Pipeline from the configured collaborators.
func New(cfg *config.Config, delegate store.Delegate) (*Pipeline, error) {
	vlm, err := vlmclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("grading: %w", err)
	}
	return &Pipeline{
		preprocessor: preprocess.New(cfg),
		vlm:          vlm,
		ocr:          ocrclient.New(cfg),
		lineBuilder:  lines.New(cfg),
		matcher:      fusion.New(cfg),
		extractor:    identifier.New(cfg),
		annotator:    annotate.New(cfg.ImageJPEGQuality),
		delegate:     delegate,
		cfg:          cfg,
	}, nil
}

// Grade runs preprocessing synchronously, then VLM inference and
// per-page OCR concurrently via errgroup, then fusion, identifier
// extraction, and annotation synchronously over the joined results.
func (p *Pipeline) Grade(ctx context.Context, blobs []preprocess.Blob, opts GradingOptions) (*model.GradingResult, error) {
	pages, err := p.preprocessor.Process(blobs)
	if err != nil {
		return nil, err
	}

	var (
		vlmReply vlmclient.Reply
		vlmRaw   string
		vlmErr   error
		ocrWords = make([][]model.OCRWord, len(pages))
		ocrErrs  = make([]error, len(pages))
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		images := make([][]byte, len(pages))
		for i, pg := range pages {
			images[i] = pg.WhiteBalanced
		}
		reply, raw, err := p.vlm.Grade(gctx, images)
		vlmReply, vlmRaw, vlmErr = reply, raw, err
		if err != nil {
			return err
		}
		return nil
	})

	for i := range pages {
		i := i
		g.Go(func() error {
			words, err := p.ocr.Recognize(gctx, pages[i])
			ocrWords[i] = words
			ocrErrs[i] = err
			// OCRFailure/OCRTimeout are recoverable: never abort the
			// group over an OCR error, only over a VLM one.
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if vlmErr != nil {
			return nil, vlmErr
		}
		return nil, err
	}
	if vlmErr != nil {
		return nil, vlmErr
	}

	var warnings []string
	for i, err := range ocrErrs {
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("page %d: ocr failure: %v", i, err))
		}
	}

	linesByPage := make(map[int][]model.OCRLine, len(pages))
	positionsByPage := make(map[int][]model.QuestionPosition, len(pages))
	printedByPage := make(map[int][]model.OCRWord, len(pages))
	pageDims := make(map[int][2]int, len(pages))

	sectionTypeByPage := dominantSectionTypePerPage(vlmReply.Items)

	for i, pg := range pages {
		pageDims[i] = [2]int{pg.Width, pg.Height}
		words := ocrWords[i]
		if words == nil {
			continue
		}
		var printed []model.OCRWord
		for _, w := range words {
			if w.Type == model.WordPrinted {
				printed = append(printed, w)
			}
		}
		printedByPage[i] = printed
		positionsByPage[i] = lines.ExtractPositions(printed, i)
		linesByPage[i] = p.lineBuilder.BuildLines(words, sectionTypeByPage[i])
	}

	items := p.matcher.Match(vlmReply.Items, linesByPage, positionsByPage, pageDims)

	uuid := p.extractor.Extract(printedByPage)
	var uuidPages []model.PageUUIDCandidate
	if uuid != nil {
		uuidPages = uuid.Candidates
		if w := identifier.Warning(uuid); w != "" {
			warnings = append(warnings, w)
		}
	}

	for _, it := range items {
		if it.PageConflict {
			warnings = append(warnings, fmt.Sprintf("position %d: VLM page %d conflicts with OCR line's page", it.Position, it.PageIndex))
		}
	}

	result := &model.GradingResult{
		Items:      items,
		ImageCount: len(pages),
		WorksheetUUID: uuid,
		UUIDPages:  uuidPages,
		Warnings:   warnings,
	}
	for _, it := range items {
		result.TotalCount++
		if it.IsCorrect {
			result.CorrectCount++
		}
	}

	if err := p.persist(ctx, pages, items, result); err != nil {
		return nil, err
	}

	if opts.SaveRawArtifacts && p.delegate != nil {
		p.saveDebugArtifacts(ctx, vlmRaw, ocrWords, result)
	}

	return result, nil
}

func (p *Pipeline) persist(ctx context.Context, pages []model.Page, items []model.GradedItem, result *model.GradingResult) error {
	itemsByPage := make(map[int][]model.GradedItem, len(pages))
	for _, it := range items {
		itemsByPage[it.PageIndex] = append(itemsByPage[it.PageIndex], it)
	}

	result.OriginalImageURLs = make([]string, len(pages))
	result.GradedImageURLs = make([]string, len(pages))

	for i, pg := range pages {
		if p.delegate != nil {
			if url, err := p.delegate.Put(ctx, "original", pg.Raw); err == nil {
				result.OriginalImageURLs[i] = url
			} else {
				result.Warnings = append(result.Warnings, fmt.Sprintf("page %d: %s: %v", i, ErrDelegatePersistFailure, err))
			}
		}

		annotated, err := p.annotator.Annotate(pg.Decoded, itemsByPage[pg.Index])
		if err != nil {
			return fmt.Errorf("grading: annotate page %d: %w", i, err)
		}
		if p.delegate != nil {
			url, err := p.delegate.Put(ctx, "annotated", annotated)
			if err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("page %d: %s: %v", i, ErrDelegatePersistFailure, err))
				continue
			}
			result.GradedImageURLs[i] = url
		}
	}
	return nil
}

func (p *Pipeline) saveDebugArtifacts(ctx context.Context, vlmRaw string, ocrWords [][]model.OCRWord, result *model.GradingResult) {
	artifacts := &model.DebugArtifacts{}
	if id, err := p.delegate.PutArtifact(ctx, "vlm_raw", vlmRaw); err == nil {
		artifacts.VLMRawArtifactID = id
	}
	artifacts.OCRRawArtifactIDs = make([]string, len(ocrWords))
	for i := range ocrWords {
		text := fmt.Sprintf("%+v", ocrWords[i])
		if id, err := p.delegate.PutArtifact(ctx, fmt.Sprintf("ocr_raw_%d", i), text); err == nil {
			artifacts.OCRRawArtifactIDs[i] = id
		}
	}
	result.DebugArtifacts = artifacts
}

func dominantSectionTypePerPage(items []model.RawVLMItem) map[int]model.SectionType {
	out := make(map[int]model.SectionType)
	for _, it := range items {
		if it.Section.Type == model.SectionUnknown {
			continue
		}
		if _, ok := out[it.PageIndex]; !ok {
			out[it.PageIndex] = it.Section.Type
		}
	}
	return out
}
