package ws

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/dreamforge/imagegen/internal/dream"
	"github.com/dreamforge/imagegen/internal/jobcore"
	"github.com/dreamforge/imagegen/logger"
)

// routeMessage dispatches one decoded inbound envelope to its handler.
// Unrecognized types reply with job:error{kind:UnknownType}, echoing id.
func (h *Hub) routeMessage(s *Session, env *inboundEnvelope) {
	switch env.Type {
	case "job:submit":
		h.handleJobSubmit(s, env)
	case "job:cancel":
		h.handleJobCancel(s, env)
	case "job:priority":
		h.handleJobPriority(s, env)
	case "dream:start":
		h.handleDreamStart(s, env)
	case "dream:stop":
		h.handleDreamStop(s, env)
	case "dream:status":
		h.handleDreamStatus(s, env)
	case "dream:top":
		s.sendJSON(dreamTopMsg())
	case "dream:guide":
		h.handleDreamGuide(s, env)
	case "storage:put":
		h.handleStoragePut(s, env)
	case "ping":
		s.sendJSON(map[string]interface{}{"type": "pong"})
	case "telemetry:otlp":
		logger.Debugw("telemetry:otlp frame received", "session_id", s.id)
	default:
		s.sendJSON(errorMsg(env.ID, "", string(jobcore.KindUnknownType), "unrecognized envelope type: "+env.Type))
	}
}

// handleJobSubmit validates params per jobType, resolves initImageRef
// through the file-ref store, submits the job, and acks it.
func (h *Hub) handleJobSubmit(s *Session, env *inboundEnvelope) {
	jobType := jobcore.Type(env.JobType)

	if env.InitImageRef != "" {
		if _, ok := h.fileRefs.Take(env.InitImageRef); !ok {
			s.sendJSON(errorMsg(env.ID, "", string(jobcore.KindRefNotFound), "initImageRef expired or unknown"))
			return
		}
	}

	switch jobType {
	case jobcore.TypeModeSwitch:
		h.handleModeSwitchSubmit(s, env)
		return
	case jobcore.TypeGenerate:
		var p jobcore.GenerateParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			s.sendJSON(errorMsg(env.ID, "", string(jobcore.KindBadRequest), "malformed generate params"))
			return
		}
		if env.InitImageRef != "" {
			p.InitImageRef = env.InitImageRef
		}
		if verr := jobcore.ValidateGenerateParams(&p); verr != nil {
			s.sendJSON(errorMsg(env.ID, "", string(verr.Kind), verr.Message))
			return
		}
		h.submitAndAck(s, env, jobType, &p)
	case jobcore.TypeSR:
		var p jobcore.SRParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			s.sendJSON(errorMsg(env.ID, "", string(jobcore.KindBadRequest), "malformed sr params"))
			return
		}
		if verr := jobcore.ValidateSRParams(&p); verr != nil {
			s.sendJSON(errorMsg(env.ID, "", string(verr.Kind), verr.Message))
			return
		}
		h.submitAndAck(s, env, jobType, &p)
	case jobcore.TypeComfy:
		var p jobcore.ComfyParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			s.sendJSON(errorMsg(env.ID, "", string(jobcore.KindBadRequest), "malformed comfy params"))
			return
		}
		if verr := jobcore.ValidateComfyParams(&p); verr != nil {
			s.sendJSON(errorMsg(env.ID, "", string(verr.Kind), verr.Message))
			return
		}
		h.submitAndAck(s, env, jobType, &p)
	default:
		s.sendJSON(errorMsg(env.ID, "", string(jobcore.KindBadRequest), "unknown jobType: "+env.JobType))
	}
}

func (h *Hub) handleModeSwitchSubmit(s *Session, env *inboundEnvelope) {
	var p jobcore.ModeSwitchParams
	if err := json.Unmarshal(env.Params, &p); err != nil {
		s.sendJSON(errorMsg(env.ID, "", string(jobcore.KindBadRequest), "malformed modeSwitch params"))
		return
	}
	if verr := jobcore.ValidateModeSwitchParams(&p); verr != nil {
		s.sendJSON(errorMsg(env.ID, "", string(verr.Kind), verr.Message))
		return
	}

	job, err := h.pool.SwitchMode(p.Mode)
	if err != nil {
		je := asJobError(err)
		s.sendJSON(errorMsg(env.ID, "", string(je.Kind), je.Message))
		return
	}

	s.sendJSON(ackMsg(env.ID, job.ID))

	if job.IsTerminal() {
		// The no-op (target == current mode) fast path resolves the job
		// synchronously without ever reaching the pool's subscriber
		// bookkeeping, so deliver the terminal event directly instead of
		// subscribing to a callback that would never fire.
		h.deliverTerminal(s, job)
		return
	}

	s.trackJob(job.ID)
	h.attachSubscription(s, job.ID)
}

func (h *Hub) submitAndAck(s *Session, env *inboundEnvelope, jobType jobcore.Type, params interface{}) {
	job := jobcore.New(env.ID, jobType, jobcore.PriorityNORMAL, params, env.InitImageRef)

	if err := h.pool.Submit(job); err != nil {
		je := asJobError(err)
		s.sendJSON(errorMsg(env.ID, "", string(je.Kind), je.Message))
		return
	}

	s.trackJob(job.ID)
	s.sendJSON(ackMsg(env.ID, job.ID))
	h.attachSubscription(s, job.ID)
	h.broadcastQueueState()
}

// attachSubscription wires the pool's per-job callback to this session's
// connection, serializing progress/terminal events as envelopes. The
// subscription is disposable: the pool removes it after the terminal
// delivery, and this handler also stops tracking the job at that point.
func (h *Hub) attachSubscription(s *Session, jobID string) {
	h.pool.Subscribe(jobID, func(ev jobcore.ProgressEvent, job *jobcore.Job) {
		if job.IsTerminal() {
			h.deliverTerminal(s, job)
			s.untrackJob(jobID)
			h.broadcastQueueState()
			return
		}
		s.sendJSON(progressMsg(jobID, ev))
	})
}

func (h *Hub) deliverTerminal(s *Session, job *jobcore.Job) {
	result := job.Result()
	if result == nil {
		return
	}
	switch job.State() {
	case jobcore.StateDone:
		s.sendJSON(completeMsg(job.ID, result.Key, result.URL, result.Meta))
	case jobcore.StateCanceled:
		s.sendJSON(cancelMsg(job.ID))
	default:
		if result.Err != nil {
			s.sendJSON(errorMsg("", job.ID, string(result.Err.Kind), result.Err.Message))
		}
	}
}

// handleJobCancel is best-effort: no error if the job is already terminal
// or unknown to the pool.
func (h *Hub) handleJobCancel(s *Session, env *inboundEnvelope) {
	if !s.hasJob(env.JobID) {
		return
	}
	h.pool.Cancel(env.JobID)
	h.broadcastQueueState()
}

func (h *Hub) handleJobPriority(s *Session, env *inboundEnvelope) {
	if !s.hasJob(env.JobID) {
		return
	}
	p, ok := parsePriority(env.Priority)
	if !ok {
		s.sendJSON(errorMsg(env.ID, env.JobID, string(jobcore.KindBadRequest), "unknown priority: "+env.Priority))
		return
	}
	if h.pool.Reprioritize(env.JobID, p) {
		h.broadcastQueueState()
	}
}

func parsePriority(name string) (jobcore.Priority, bool) {
	switch strings.ToUpper(name) {
	case "URGENT":
		return jobcore.PriorityURGENT, true
	case "NORMAL":
		return jobcore.PriorityNORMAL, true
	case "BATCH":
		return jobcore.PriorityBATCH, true
	case "BACKGROUND":
		return jobcore.PriorityBACKGROUND, true
	default:
		return 0, false
	}
}

func (h *Hub) handleDreamStart(s *Session, env *inboundEnvelope) {
	var temperature float64
	if env.Temperature != nil {
		temperature = *env.Temperature
	}
	err := h.dream.Start(dream.StartParams{
		Owner:       s.id,
		Prompt:      env.Prompt,
		Temperature: temperature,
		IntervalMS:  env.IntervalMs,
		DurationH:   env.DurationHours,
	})
	if err != nil {
		je := asJobError(err)
		s.sendJSON(errorMsg(env.ID, "", string(je.Kind), je.Message))
		return
	}
	s.sendJSON(dreamStartedMsg(s.id))
}

func (h *Hub) handleDreamStop(s *Session, env *inboundEnvelope) {
	stats, err := h.dream.Stop()
	if err != nil {
		je := asJobError(err)
		s.sendJSON(errorMsg(env.ID, "", string(je.Kind), je.Message))
		return
	}
	s.sendJSON(dreamStoppedMsg(stats))
}

func (h *Hub) handleDreamStatus(s *Session, env *inboundEnvelope) {
	s.sendJSON(dreamStatusMsg(string(h.dream.State()), h.dream.Owner()))
}

func (h *Hub) handleDreamGuide(s *Session, env *inboundEnvelope) {
	var prompt *string
	if env.Prompt != "" {
		prompt = &env.Prompt
	}
	if err := h.dream.Guide(prompt, env.Temperature); err != nil {
		je := asJobError(err)
		s.sendJSON(errorMsg(env.ID, "", string(je.Kind), je.Message))
	}
}

func (h *Hub) handleStoragePut(s *Session, env *inboundEnvelope) {
	data, err := base64.StdEncoding.DecodeString(env.DataBase64)
	if err != nil {
		s.sendJSON(errorMsg(env.ID, "", string(jobcore.KindBadRequest), "data must be base64-encoded"))
		return
	}
	ref, err := h.fileRefs.Put(data, env.ContentType)
	if err != nil {
		s.sendJSON(errorMsg(env.ID, "", string(jobcore.KindBadRequest), "failed to store upload"))
		return
	}
	s.sendJSON(storagePutAckMsg(env.ID, ref))
}

func asJobError(err error) *jobcore.Error {
	if je, ok := err.(*jobcore.Error); ok {
		return je
	}
	return jobcore.NewError(jobcore.KindWorkerFailure, err.Error())
}
