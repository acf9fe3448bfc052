package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"sidequest/internal/cache"
	"sidequest/internal/models"
	"sidequest/internal/observability"
	"sidequest/internal/repository"
	"sidequest/internal/storage"

	xdraw "golang.org/x/image/draw"
)

const (
	saltLength           = 16
	saltAlphabet         = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultMaxDimension  = 2048
	DefaultMaxImageBytes = 10 << 20
	DefaultMaxPixels     = 40_000_000
	assetJPEGQuality     = 85
)

// AssetOptions tunes ingestion. Zero values fall back to defaults.
// MaxPixels caps width*height as declared by the image header and is checked
// before any pixel buffer is allocated.
type AssetOptions struct {
	MaxDimension  int
	MaxBytes      int
	MaxPixels     int
	UploadTimeout time.Duration
}

// AssetOwner names the user or the job an asset hangs off. Exactly one is set.
type AssetOwner struct {
	UserID *uint
	JobID  *uint
}

// UploadAssetInput is the body accepted by the upload routes.
type UploadAssetInput struct {
	ImageData string `json:"image_data"`
}

type AssetService struct {
	assetRepo repository.AssetRepository
	userRepo  repository.UserRepository
	jobRepo   repository.JobRepository
	store     storage.ObjectStore
	cache     *cache.Store
	logger    *slog.Logger
	opts      AssetOptions
	newSalt   func() (string, error)
	now       func() time.Time
}

func NewAssetService(
	assetRepo repository.AssetRepository,
	userRepo repository.UserRepository,
	jobRepo repository.JobRepository,
	store storage.ObjectStore,
	cacheStore *cache.Store,
	logger *slog.Logger,
	opts AssetOptions,
) *AssetService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxImageBytes
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 30 * time.Second
	}
	return &AssetService{
		assetRepo: assetRepo,
		userRepo:  userRepo,
		jobRepo:   jobRepo,
		store:     store,
		cache:     cacheStore,
		logger:    logger,
		opts:      opts,
		newSalt:   randomSalt,
		now:       time.Now,
	}
}

func (s *AssetService) GetAsset(ctx context.Context, id uint) (*models.Asset, error) {
	return s.assetRepo.GetByID(ctx, id)
}

func (s *AssetService) ListAssets(ctx context.Context) ([]models.Asset, error) {
	return s.assetRepo.List(ctx)
}

// UploadForUser attaches an image to userID's profile.
func (s *AssetService) UploadForUser(ctx context.Context, actorID, userID uint, imageData string) (*models.Asset, error) {
	if actorID != userID {
		return nil, models.NewForbiddenError("You can only upload images to your own profile")
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.Ingest(ctx, imageData, AssetOwner{UserID: &userID})
}

// UploadForJob attaches an image to a job the actor posted.
func (s *AssetService) UploadForJob(ctx context.Context, actorID, jobID uint, imageData string) (*models.Asset, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.HasPoster(actorID) {
		return nil, models.NewForbiddenError("Only the poster can add images to this job")
	}
	asset, err := s.Ingest(ctx, imageData, AssetOwner{JobID: &jobID})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateJobs(ctx, jobID)
	return asset, nil
}

// Ingest decodes imageData, stores the bytes and records the asset. On any
// failure nothing is left behind: no row, and no object once the row fails.
func (s *AssetService) Ingest(ctx context.Context, imageData string, owner AssetOwner) (*models.Asset, error) {
	ctx, span := observability.StartSpan(ctx, "asset.ingest")
	defer span.End()

	asset, err := s.ingest(ctx, imageData, owner)
	switch {
	case err == nil:
		observability.AssetIngestTotal.WithLabelValues("stored").Inc()
	case models.HasCode(err, models.CodeValidation):
		observability.AssetIngestTotal.WithLabelValues("rejected").Inc()
	case models.HasCode(err, models.CodeUploadFailed):
		observability.AssetIngestTotal.WithLabelValues("upload_failed").Inc()
	default:
		observability.AssetIngestTotal.WithLabelValues("failed").Inc()
	}
	if err != nil {
		span.RecordError(err)
	}
	return asset, err
}

func (s *AssetService) ingest(ctx context.Context, imageData string, owner AssetOwner) (*models.Asset, error) {
	if (owner.UserID == nil) == (owner.JobID == nil) {
		return nil, models.NewValidationError("Asset must belong to exactly one user or job")
	}

	img, err := s.decode(imageData)
	if err != nil {
		return nil, err
	}

	salt, err := s.newSalt()
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	asset := &models.Asset{
		BaseURL:   s.store.BaseURL(),
		Salt:      salt,
		Extension: img.extension,
		Width:     img.width,
		Height:    img.height,
		CreatedAt: s.now().UTC(),
		UserID:    owner.UserID,
		JobID:     owner.JobID,
	}
	key := asset.ObjectKey()

	uploadCtx, cancel := context.WithTimeout(ctx, s.opts.UploadTimeout)
	defer cancel()
	if err := s.store.Put(uploadCtx, key, img.mimeType, img.data); err != nil {
		s.logger.ErrorContext(ctx, "asset upload failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, models.NewUploadError(err)
	}

	if err := s.assetRepo.Create(ctx, asset); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.WarnContext(ctx, "orphaned asset object",
				slog.String("key", key),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, err
	}
	return asset, nil
}

// DeleteAsset removes an asset owned by the actor, or attached to a job the
// actor posted.
func (s *AssetService) DeleteAsset(ctx context.Context, actorID, id uint) (*models.Asset, error) {
	asset, err := s.assetRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canModify(ctx, actorID, asset); err != nil {
		return nil, err
	}

	if err := s.assetRepo.Delete(ctx, id); err != nil {
		return nil, err
	}
	removeObjects(ctx, s.store, s.logger, []models.Asset{*asset})
	if asset.JobID != nil {
		s.cache.InvalidateJobs(ctx, *asset.JobID)
	}
	return asset, nil
}

func (s *AssetService) canModify(ctx context.Context, actorID uint, asset *models.Asset) error {
	if asset.UserID != nil && *asset.UserID == actorID {
		return nil
	}
	if asset.JobID != nil {
		job, err := s.jobRepo.GetByID(ctx, *asset.JobID)
		if err != nil {
			return err
		}
		if job.HasPoster(actorID) {
			return nil
		}
	}
	return models.NewForbiddenError("You do not own this image")
}

type decodedImage struct {
	extension string
	mimeType  string
	width     int
	height    int
	data      []byte
}

func (s *AssetService) decode(imageData string) (*decodedImage, error) {
	declared, payload := splitDataURL(imageData)
	if payload == "" {
		return nil, models.NewValidationError("image_data is required")
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > s.opts.MaxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("Image too large (max %dMB)", s.opts.MaxBytes>>20))
	}

	raw, err := decodeBase64(payload)
	if err != nil {
		return nil, models.NewValidationError("image_data is not valid base64")
	}

	detected := normalizeContentType(http.DetectContentType(raw))
	if declared != "" && !isMatchingContentType(declared, detected) {
		if extensionFor(declared) == "" {
			return nil, models.NewValidationError("Unsupported image type")
		}
		return nil, models.NewValidationError("Image content type mismatch")
	}
	ext := extensionFor(detected)
	if ext == "" {
		return nil, models.NewValidationError("Unsupported image type")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil || decodedFormatToMime(format) != detected {
		return nil, models.NewValidationError("Invalid image file")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(s.opts.MaxPixels) {
		return nil, models.NewValidationError(fmt.Sprintf("Image dimensions too large (max %d pixels)", s.opts.MaxPixels))
	}

	out := &decodedImage{
		extension: ext,
		mimeType:  detected,
		width:     cfg.Width,
		height:    cfg.Height,
		data:      raw,
	}
	if format == "gif" || (cfg.Width <= s.opts.MaxDimension && cfg.Height <= s.opts.MaxDimension) {
		return out, nil
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	scaled := resizeToFit(src, s.opts.MaxDimension, s.opts.MaxDimension)
	encoded, err := encodeAs(format, scaled)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	b := scaled.Bounds()
	out.width, out.height, out.data = b.Dx(), b.Dy(), encoded
	return out, nil
}

// splitDataURL separates "data:<mime>;base64,<payload>". Bare base64 comes
// back with an empty mime.
func splitDataURL(s string) (mimeType, payload string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return "", s
	}
	header, body, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return "", ""
	}
	header = strings.TrimSuffix(header, ";base64")
	return normalizeContentType(header), body
}

func decodeBase64(payload string) ([]byte, error) {
	payload = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, payload)
	if raw, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
}

func extensionFor(mimeType string) string {
	var ext string
	switch normalizeContentType(mimeType) {
	case "image/png":
		ext = "png"
	case "image/gif":
		ext = "gif"
	case "image/jpeg", "image/jpg":
		ext = "jpg"
	}
	if !models.SupportedImageExtensions[ext] {
		return ""
	}
	return ext
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func decodedFormatToMime(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return ""
	}
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if sh := float64(maxHeight) / float64(h); sh < scale {
		scale = sh
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeAs(format string, img image.Image) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	var err error
	switch format {
	case "png":
		err = png.Encode(buf, img)
	case "jpeg":
		err = jpeg.Encode(buf, img, &jpeg.Options{Quality: assetJPEGQuality})
	default:
		return nil, fmt.Errorf("cannot re-encode %s", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// randomSalt draws saltLength characters from saltAlphabet, rejecting bytes
// that would bias the modulo.
func randomSalt() (string, error) {
	const limit = 256 - 256%len(saltAlphabet)
	out := make([]byte, 0, saltLength)
	buf := make([]byte, saltLength*2)
	for len(out) < saltLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, saltAlphabet[int(b)%len(saltAlphabet)])
			if len(out) == saltLength {
				break
			}
		}
	}
	return string(out), nil
}
