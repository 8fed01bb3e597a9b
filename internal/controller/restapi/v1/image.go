package v1

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/piyushgit011/image-process/internal/controller/restapi/v1/response"
	"github.com/piyushgit011/image-process/internal/controller/restapi/v1/validate"
	"github.com/piyushgit011/image-process/internal/dto"
	"github.com/piyushgit011/image-process/internal/entity"
	"github.com/piyushgit011/image-process/pkg/types/errs"
)

// @Summary  	Submit an image for vehicle-gated face-blur processing
// @Description Runs the vehicle pre-check synchronously; on acceptance the
// @Description job is enqueued for asynchronous face detection and blur.
// @Tags 		jobs
// @Accept 		mpfd
// @Produce 	json
// @Param 		file formData file true "Image file (jpg, png, gif)"
// @Success 	201 {object} response.SubmitResult
// @Failure 	400 {object} response.Error "Empty file or wrong parameters"
// @Failure 	413 {object} response.Error "File too large"
// @Failure 	415 {object} response.Error "Unsupported format"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/jobs [post]
func (r *V1) submitJob(ctx *fiber.Ctx) error {
	req, code, msg := r.parseUpload(ctx, "file")
	if msg != "" {
		return errorResponse(ctx, code, msg)
	}

	jobID, accepted, reason, err := r.jobs.Submit(ctx.UserContext(), req)
	if err != nil {
		r.logger.Error(err, "restapi - v1 - submitJob")
		return errorResponse(ctx, http.StatusInternalServerError, "submission failed")
	}

	status := http.StatusCreated
	if !accepted {
		status = http.StatusOK
	}

	return ctx.Status(status).JSON(response.SubmitResult{JobID: jobID, Accepted: accepted, Reason: reason})
}

// @Summary  	Submit a batch of images
// @Description Each file is admitted independently; no failure is contagious.
// @Tags 		jobs
// @Accept 		mpfd
// @Produce 	json
// @Success 	200 {object} response.BatchResult
// @Failure 	400 {object} response.Error "No files provided"
// @Router 		/v1/jobs/batch [post]
func (r *V1) batchSubmitJobs(ctx *fiber.Ctx) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "multipart form required")
	}

	files := form.File["files"]
	if len(files) == 0 {
		return errorResponse(ctx, http.StatusBadRequest, "at least one file is required")
	}
	if len(files) > validate.MaxBatchFiles {
		return errorResponse(ctx, http.StatusBadRequest, "too many files in batch")
	}

	reqs := make([]dto.SubmitRequest, 0, len(files))
	for _, fh := range files {
		contentType := fh.Header.Get("Content-Type")
		if !validate.AllowedContentTypes[contentType] {
			continue
		}
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !validate.AllowedExtensions[ext] {
			continue
		}
		if fh.Size == 0 || fh.Size > validate.MaxFileSize {
			continue
		}

		f, err := fh.Open()
		if err != nil {
			continue
		}
		data := make([]byte, fh.Size)
		_, readErr := io.ReadFull(f, data)
		f.Close()
		if readErr != nil {
			continue
		}

		reqs = append(reqs, dto.SubmitRequest{Data: data, Filename: fh.Filename, ContentType: contentType})
	}

	result, err := r.jobs.BatchSubmit(ctx.UserContext(), reqs)
	if err != nil {
		r.logger.Error(err, "restapi - v1 - batchSubmitJobs")
		return errorResponse(ctx, http.StatusInternalServerError, "batch submission failed")
	}

	out := response.BatchResult{Skipped: result.Skipped, Results: make([]response.SubmitResult, 0, len(result.Results))}
	for _, res := range result.Results {
		out.Results = append(out.Results, response.SubmitResult{JobID: res.JobID, Accepted: res.Accepted, Reason: res.Reason})
	}

	return ctx.Status(http.StatusOK).JSON(out)
}

// @Summary  	Get job status
// @Tags 		jobs
// @Produce 	json
// @Param 		job_id path string true "Job ID"
// @Success 	200 {object} dto.StatusPayload
// @Failure 	404 {object} response.Error "Job not found"
// @Router 		/v1/jobs/{job_id} [get]
func (r *V1) getJobStatus(ctx *fiber.Ctx) error {
	jobID := ctx.Params("job_id")
	if jobID == "" {
		return errorResponse(ctx, http.StatusBadRequest, "job_id is required")
	}

	payload, err := r.jobs.GetStatus(ctx.UserContext(), jobID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "job not found")
		}
		r.logger.Error(err, "restapi - v1 - getJobStatus")
		return errorResponse(ctx, http.StatusInternalServerError, "lookup failed")
	}

	return ctx.Status(http.StatusOK).JSON(payload)
}

// @Summary  	Query jobs by detection flags
// @Tags 		jobs
// @Produce 	json
// @Param 		is_vehicle_detected query bool false "Filter by vehicle detected"
// @Param 		is_face_detected query bool false "Filter by face detected"
// @Param 		is_face_blurred query bool false "Filter by face blurred"
// @Param 		limit query int false "Result limit"
// @Success 	200 {array} entity.Job
// @Router 		/v1/jobs [get]
func (r *V1) queryJobs(ctx *fiber.Ctx) error {
	filter := entity.JobFilter{}
	if v := ctx.Query("is_vehicle_detected"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			filter.IsVehicleDetected = &b
		}
	}
	if v := ctx.Query("is_face_detected"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			filter.IsFaceDetected = &b
		}
	}
	if v := ctx.Query("is_face_blurred"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			filter.IsFaceBlurred = &b
		}
	}

	limit := validate.DefaultQueryLimit
	if v := ctx.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= validate.MaxQueryLimit {
			limit = n
		}
	}

	jobs, err := r.jobs.Query(ctx.UserContext(), filter, limit)
	if err != nil {
		r.logger.Error(err, "restapi - v1 - queryJobs")
		return errorResponse(ctx, http.StatusInternalServerError, "query failed")
	}

	return ctx.Status(http.StatusOK).JSON(jobs)
}

// parseUpload validates and reads a single multipart file field, returning
// an HTTP status and message pair on failure (empty message on success).
func (r *V1) parseUpload(ctx *fiber.Ctx, field string) (dto.SubmitRequest, int, string) {
	file, err := ctx.FormFile(field)
	if err != nil {
		return dto.SubmitRequest{}, http.StatusBadRequest, "file is required"
	}

	if file.Size == 0 {
		return dto.SubmitRequest{}, http.StatusBadRequest, "file is empty"
	}
	if file.Size > validate.MaxFileSize {
		return dto.SubmitRequest{}, http.StatusRequestEntityTooLarge, "file too large"
	}

	contentType := file.Header.Get("Content-Type")
	if !validate.AllowedContentTypes[contentType] {
		return dto.SubmitRequest{}, http.StatusUnsupportedMediaType, "unsupported file type"
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !validate.AllowedExtensions[ext] {
		return dto.SubmitRequest{}, http.StatusUnsupportedMediaType, "unsupported file extension"
	}

	opened, err := file.Open()
	if err != nil {
		r.logger.Error(err, "restapi - v1 - parseUpload")
		return dto.SubmitRequest{}, http.StatusInternalServerError, "problems opening file"
	}
	defer opened.Close()

	data := make([]byte, file.Size)
	if _, err := io.ReadFull(opened, data); err != nil {
		r.logger.Error(err, "restapi - v1 - parseUpload - read")
		return dto.SubmitRequest{}, http.StatusInternalServerError, "problems reading file"
	}

	return dto.SubmitRequest{Data: data, Filename: file.Filename, ContentType: contentType}, 0, ""
}
