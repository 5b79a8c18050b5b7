package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// armingRequest is the body of PUT /api/v1/arming. ArmingStatus is required.
type armingRequest struct {
	ArmingStatus *domain.ArmingStatus `json:"arming_status"`
}

// activeRequest is the body of PUT /api/v1/sensors/{type}/{name}/active.
type activeRequest struct {
	Active bool `json:"active"`
}

// imageResponse is returned by POST /api/v1/images.
type imageResponse struct {
	CatDetected bool               `json:"cat_detected"`
	AlarmStatus domain.AlarmStatus `json:"alarm_status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.controller.Snapshot(r.Context())
	if err != nil {
		writeControllerError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleSetArming(w http.ResponseWriter, r *http.Request) {
	var req armingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.ArmingStatus == nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "arming_status is required")

		return
	}

	if err := s.controller.SetArmingStatus(r.Context(), *req.ArmingStatus); err != nil {
		writeControllerError(w, err)

		return
	}

	s.handleStatus(w, r)
}

func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := s.controller.Sensors(r.Context())
	if err != nil {
		writeControllerError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, sensors)
}

func (s *Server) handleAddSensor(w http.ResponseWriter, r *http.Request) {
	var sensor domain.Sensor
	if !decodeBody(w, r, &sensor) {
		return
	}

	if err := s.controller.AddSensor(r.Context(), sensor); err != nil {
		writeControllerError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, sensor)
}

func (s *Server) handleRemoveSensor(w http.ResponseWriter, r *http.Request) {
	sensor, ok := sensorFromPath(w, r)
	if !ok {
		return
	}

	if err := s.controller.RemoveSensor(r.Context(), sensor); err != nil {
		writeControllerError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetSensorActive(w http.ResponseWriter, r *http.Request) {
	sensor, ok := sensorFromPath(w, r)
	if !ok {
		return
	}

	var req activeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.controller.ChangeSensorActivationStatus(r.Context(), sensor, req.Active); err != nil {
		writeControllerError(w, err)

		return
	}

	s.handleStatus(w, r)
}

func (s *Server) handleProcessImage(w http.ResponseWriter, r *http.Request) {
	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "image is too large")

			return
		}

		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "unable to read image")

		return
	}

	if len(image) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "image is required")

		return
	}

	detected, err := s.controller.ProcessImage(r.Context(), image)
	if err != nil {
		writeControllerError(w, err)

		return
	}

	alarmStatus, err := s.controller.AlarmStatus(r.Context())
	if err != nil {
		writeControllerError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, imageResponse{
		CatDetected: detected,
		AlarmStatus: alarmStatus,
	})
}

// sensorFromPath builds a sensor from the {type} and {name} URL parameters.
func sensorFromPath(w http.ResponseWriter, r *http.Request) (domain.Sensor, bool) {
	sensorType, err := domain.ParseSensorType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())

		return domain.Sensor{}, false
	}

	return domain.NewSensor(chi.URLParam(r, "name"), sensorType), true
}

// decodeBody decodes a JSON body into v and writes a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body: "+err.Error())

		return false
	}

	return true
}
