package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	signedUploadTTL = 15 * time.Minute
	thumbnailWidth  = 200
)

// objectStore is the slice of cloud storage the proof upload needs.
type objectStore interface {
	Sign(ctx context.Context, objectKey, contentType string, maxBytes int64, expires time.Duration) (*utils.SignedUpload, error)
	Read(ctx context.Context, objectKey string, limit int64) ([]byte, string, error)
	Upload(ctx context.Context, objectKey string, data []byte, contentType string) error
	Delete(ctx context.Context, objectKey string) error
}

type gcsStore struct{}

func (gcsStore) Sign(ctx context.Context, objectKey, contentType string, maxBytes int64, expires time.Duration) (*utils.SignedUpload, error) {
	return utils.SignUpload(ctx, objectKey, contentType, maxBytes, expires)
}

func (gcsStore) Read(ctx context.Context, objectKey string, limit int64) ([]byte, string, error) {
	return utils.ReadObjectFromGCS(ctx, objectKey, limit)
}

func (gcsStore) Upload(ctx context.Context, objectKey string, data []byte, contentType string) error {
	return utils.UploadBytesToGCS(ctx, objectKey, data, contentType)
}

func (gcsStore) Delete(ctx context.Context, objectKey string) error {
	return utils.DeleteObjectFromGCS(ctx, objectKey)
}

type proofSignRequest struct {
	MimeType string `json:"mimeType" binding:"required"`
	Size     int64  `json:"size" binding:"required,gt=0"`
}

type proofCompleteRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
}

type proofSignResponse struct {
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ObjectKey string            `json:"objectKey"`
	AccessURL string            `json:"accessUrl"`
	ExpiresAt string            `json:"expiresAt"`
}

// proofUploads serves the driver portal's proof-of-delivery photo flow:
// either sign + direct PUT + complete, or one multipart post.
type proofUploads struct {
	store objectStore
}

func proofPrefix(storeId string, deliveryId int) string {
	return path.Join(storeId, "deliveries", strconv.Itoa(deliveryId)) + "/"
}

// activeDelivery loads the driver's delivery and checks a photo may be attached now.
func activeDelivery(ctx context.Context, id int) (*models.Delivery, error) {
	delivery, err := models.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	if !delivery.Status.IsActive() {
		return nil, fmt.Errorf("%w: delivery is %s", models.ErrDeliveryStatusConflict, delivery.Status)
	}
	return delivery, nil
}

func (u *proofUploads) sign(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req proofSignRequest
	if !bindJSON(c, &req) {
		return
	}
	ext, ok := utils.ImageExtension(req.MimeType)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only jpeg or png photos are accepted"})
		return
	}
	if req.Size > utils.MaxProofPhotoBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
		return
	}

	ctx := c.Request.Context()
	delivery, err := activeDelivery(ctx, id)
	if err != nil {
		respondError(c, "proofSign", err)
		return
	}

	objectKey := proofPrefix(delivery.StoreId, delivery.ID) + uuid.NewString() + ext
	signed, err := u.store.Sign(ctx, objectKey, req.MimeType, utils.MaxProofPhotoBytes, signedUploadTTL)
	if err != nil {
		logUploadError(c, delivery, objectKey, err)
		message := "failed to sign upload"
		if !strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
			message = fmt.Sprintf("failed to sign upload: %v", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
		return
	}

	config.GetLogger().WithFields(logrus.Fields{
		"store_id":    delivery.StoreId,
		"delivery_id": delivery.ID,
		"mime_type":   req.MimeType,
		"size":        req.Size,
		"object_key":  objectKey,
	}).Info("[proof.sign]")

	c.JSON(http.StatusOK, proofSignResponse{
		UploadURL: signed.UploadURL,
		Method:    signed.Method,
		Headers:   signed.Headers,
		ObjectKey: signed.ObjectKey,
		AccessURL: signed.AccessURL,
		ExpiresAt: signed.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (u *proofUploads) complete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req proofCompleteRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	delivery, err := activeDelivery(ctx, id)
	if err != nil {
		respondError(c, "proofComplete", err)
		return
	}
	if err := utils.ValidateObjectKey(req.ObjectKey, proofPrefix(delivery.StoreId, delivery.ID)); err != nil {
		respondError(c, "proofComplete", err)
		return
	}

	data, _, err := u.store.Read(ctx, req.ObjectKey, utils.MaxProofPhotoBytes)
	if err != nil {
		if !utils.IsValidationError(err) {
			logUploadError(c, delivery, req.ObjectKey, err)
		}
		respondError(c, "proofComplete", err)
		return
	}
	if _, err := utils.DetectImageType(data); err != nil {
		respondError(c, "proofComplete", err)
		return
	}
	u.attach(c, delivery, req.ObjectKey, data)
}

func (u *proofUploads) upload(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	delivery, err := activeDelivery(ctx, id)
	if err != nil {
		respondError(c, "proofUpload", err)
		return
	}

	fh, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	if fh.Size > utils.MaxProofPhotoBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read photo"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, utils.MaxProofPhotoBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read photo"})
		return
	}
	mimeType, err := utils.DetectImageType(data)
	if err != nil {
		respondError(c, "proofUpload", err)
		return
	}
	ext, _ := utils.ImageExtension(mimeType)

	objectKey := proofPrefix(delivery.StoreId, delivery.ID) + uuid.NewString() + ext
	if err := u.store.Upload(ctx, objectKey, data, mimeType); err != nil {
		logUploadError(c, delivery, objectKey, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to store photo"})
		return
	}
	u.attach(c, delivery, objectKey, data)
}

// attach writes the thumbnail next to the photo and records both urls.
func (u *proofUploads) attach(c *gin.Context, delivery *models.Delivery, objectKey string, data []byte) {
	ctx := c.Request.Context()
	thumb, err := makeThumbnail(data)
	if err != nil {
		respondError(c, "proofAttach", utils.NewValidationError("photo cannot be decoded"))
		return
	}
	thumbKey := utils.ThumbnailKey(objectKey)
	if err := u.store.Upload(ctx, thumbKey, thumb, "image/jpeg"); err != nil {
		logUploadError(c, delivery, thumbKey, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to store thumbnail"})
		return
	}

	updated, err := models.AttachProofPhoto(ctx, delivery.ID, utils.BuildObjectAccessURL(objectKey), utils.BuildObjectAccessURL(thumbKey))
	if err != nil {
		// nothing references the objects now
		for _, key := range []string{objectKey, thumbKey} {
			if delErr := u.store.Delete(ctx, key); delErr != nil {
				logUploadError(c, delivery, key, delErr)
			}
		}
		respondError(c, "proofAttach", err)
		return
	}

	config.GetLogger().WithFields(logrus.Fields{
		"store_id":    delivery.StoreId,
		"delivery_id": delivery.ID,
		"object_key":  objectKey,
		"status":      "completed",
	}).Info("[proof.complete]")

	c.JSON(http.StatusOK, gin.H{
		"objectKey":          objectKey,
		"thumbnailObjectKey": thumbKey,
		"delivery":           updated,
	})
}

// makeThumbnail scales the photo to a fixed width, keeping the aspect ratio.
func makeThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	thumbnail := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func logUploadError(c *gin.Context, delivery *models.Delivery, objectKey string, err error) {
	correlationId, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
	config.GetLogger().WithFields(logrus.Fields{
		"error":          err.Error(),
		"store_id":       delivery.StoreId,
		"delivery_id":    delivery.ID,
		"object_key":     objectKey,
		"correlation_id": correlationId,
	}).Error("[proof.error]")
}
