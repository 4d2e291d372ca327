package processing

import (
	"context"
	"fmt"
	"mime"
	"path"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aieou/sceneqc/internal/ai"
	"github.com/aieou/sceneqc/internal/models"
	"github.com/aieou/sceneqc/internal/resolver"
	"github.com/aieou/sceneqc/internal/storage"
	"github.com/aieou/sceneqc/internal/taxonomy"
)

// FrameClassifier asks the classifier about every taxonomy dimension of a
// frame at once and resolves the answers into attributes.
type FrameClassifier struct {
	classifier ai.Classifier
	taxonomy   *taxonomy.Taxonomy
	storage    storage.Storage
}

// NewFrameClassifier builds a FrameClassifier. store is used to read frames
// whose image is a storage key; it may be nil when all images are URLs.
func NewFrameClassifier(classifier ai.Classifier, tax *taxonomy.Taxonomy, store storage.Storage) *FrameClassifier {
	if tax == nil {
		tax = taxonomy.Default()
	}
	return &FrameClassifier{classifier: classifier, taxonomy: tax, storage: store}
}

func (fc *FrameClassifier) Backend() string {
	return fc.classifier.Backend()
}

func (fc *FrameClassifier) Classify(ctx context.Context, frame *models.Frame) (models.ClassificationResult, error) {
	img, err := fc.image(frame)
	if err != nil {
		return models.ClassificationResult{}, err
	}

	var mu sync.Mutex
	scores := make(map[taxonomy.Dimension][]ai.LabelScore)
	g, gctx := errgroup.WithContext(ctx)
	for _, set := range fc.taxonomy.Sets() {
		set := set
		g.Go(func() error {
			ranked, err := fc.classifier.Classify(gctx, img, set.Prompts())
			if err != nil {
				return fmt.Errorf("classify %s: %w", set.Dimension, err)
			}
			mu.Lock()
			scores[set.Dimension] = ranked
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.ClassificationResult{}, err
	}
	return resolver.Resolve(fc.taxonomy, fc.classifier.Backend(), scores)
}

// image turns the frame's image reference into something the classifier can
// use. Remote URLs are passed through; storage keys are read and inlined.
func (fc *FrameClassifier) image(frame *models.Frame) (ai.Image, error) {
	if frame.ImageURL == "" {
		return ai.Image{}, ErrNoImage
	}
	img := ai.Image{URL: frame.ImageURL}
	if img.IsRemote() {
		return img, nil
	}
	if fc.storage == nil {
		return ai.Image{}, fmt.Errorf("%w: %s is not a URL and no storage is configured", ErrNoImage, frame.ImageURL)
	}
	data, err := fc.storage.ReadFile(frame.ImageURL)
	if err != nil {
		return ai.Image{}, fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	img.Data = data
	img.ContentType = mime.TypeByExtension(path.Ext(frame.ImageURL))
	return img, nil
}
