package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DiaryMetrics holds the application's business metrics
type DiaryMetrics struct {
	photoUploads    metric.Int64Counter
	photoDeletes    metric.Int64Counter
	favoriteToggles metric.Int64Counter
	commentAdds     metric.Int64Counter
	aiRequests      metric.Int64Counter
	blobOrphans     metric.Int64Counter
	storageUsed     metric.Int64UpDownCounter
}

// NewDiaryMetrics creates business metrics instruments on the global meter
// provider. When telemetry is disabled the global provider is a no-op.
func NewDiaryMetrics() (*DiaryMetrics, error) {
	meter := otel.Meter(instrumentationName)

	photoUploads, err := meter.Int64Counter(
		"photodiary.photo.uploads",
		metric.WithDescription("Total number of photo uploads"),
		metric.WithUnit("{uploads}"),
	)
	if err != nil {
		return nil, err
	}

	photoDeletes, err := meter.Int64Counter(
		"photodiary.photo.deletes",
		metric.WithDescription("Total number of photo deletions"),
		metric.WithUnit("{deletes}"),
	)
	if err != nil {
		return nil, err
	}

	favoriteToggles, err := meter.Int64Counter(
		"photodiary.favorite.toggles",
		metric.WithDescription("Total number of favorite toggles"),
		metric.WithUnit("{toggles}"),
	)
	if err != nil {
		return nil, err
	}

	commentAdds, err := meter.Int64Counter(
		"photodiary.comment.adds",
		metric.WithDescription("Total number of comment transactions"),
		metric.WithUnit("{comments}"),
	)
	if err != nil {
		return nil, err
	}

	aiRequests, err := meter.Int64Counter(
		"photodiary.ai.requests",
		metric.WithDescription("Total number of generative AI requests"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, err
	}

	blobOrphans, err := meter.Int64Counter(
		"photodiary.blob.orphans",
		metric.WithDescription("Blobs left behind by a failed record write"),
		metric.WithUnit("{blobs}"),
	)
	if err != nil {
		return nil, err
	}

	storageUsed, err := meter.Int64UpDownCounter(
		"photodiary.storage.bytes",
		metric.WithDescription("Blob storage written in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &DiaryMetrics{
		photoUploads:    photoUploads,
		photoDeletes:    photoDeletes,
		favoriteToggles: favoriteToggles,
		commentAdds:     commentAdds,
		aiRequests:      aiRequests,
		blobOrphans:     blobOrphans,
		storageUsed:     storageUsed,
	}, nil
}

// RecordPhotoUpload records a photo upload
func (m *DiaryMetrics) RecordPhotoUpload(ctx context.Context, fileSize int64, success bool) {
	if m == nil {
		return
	}
	m.photoUploads.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
	if success {
		m.storageUsed.Add(ctx, fileSize)
	}
}

// RecordPhotoDelete records a photo deletion
func (m *DiaryMetrics) RecordPhotoDelete(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.photoDeletes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordFavoriteToggle records a favorite update
func (m *DiaryMetrics) RecordFavoriteToggle(ctx context.Context, value, success bool) {
	if m == nil {
		return
	}
	m.favoriteToggles.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("value", value),
		attribute.Bool("success", success),
	))
}

// RecordCommentAdd records a comment transaction
func (m *DiaryMetrics) RecordCommentAdd(ctx context.Context, isUser, success bool) {
	if m == nil {
		return
	}
	m.commentAdds.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("is_user", isUser),
		attribute.Bool("success", success),
	))
}

// RecordAIRequest records a call to the generative AI collaborator
func (m *DiaryMetrics) RecordAIRequest(ctx context.Context, kind string, success bool) {
	if m == nil {
		return
	}
	m.aiRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", success),
	))
}

// RecordBlobOrphan records a blob written without a matching record
func (m *DiaryMetrics) RecordBlobOrphan(ctx context.Context) {
	if m == nil {
		return
	}
	m.blobOrphans.Add(ctx, 1)
}
