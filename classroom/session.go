package classroom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/pkg/attendance"
	"github.com/medhanag29/rural-classroom/pkg/timeline"
	"github.com/medhanag29/rural-classroom/pkg/transcript"
)

const (
	maxMessageRunes = 2000
	resyncTimeout   = 30 * time.Second
)

// Options are the collaborators of a Session. Notifier and Now are optional.
type Options struct {
	Transport Transport
	Store     Store
	Analyzer  Analyzer
	Notifier  Notifier
	Language  string
	Now       func() time.Time
}

// File is one upload of a material bundle.
type File struct {
	Name string
	Data io.Reader
}

// Session is the state of one user in one course room.
//
// All state lives behind mu and no I/O happens while it is held. Room and
// lecture switches bump generation counters; a completion that started
// under an older generation is dropped instead of being merged into the
// new room's state.
type Session struct {
	me        Identity
	transport Transport
	store     Store
	analyzer  Analyzer
	notifier  Notifier
	language  string
	now       func() time.Time

	tracker *attendance.Tracker

	mu         sync.Mutex
	room       string
	roomGen    uint64
	lectureID  string
	lectureGen uint64
	lectures   []models.Lecture
	materials  []models.Material
	raw        transcript.Transcript
	summary    []transcript.Message
	summaryOn  bool
	doubts     []timeline.Event
	series     []timeline.Point
	busy       map[Action]bool
}

// NewSession builds a Session and subscribes it to the transport events.
func NewSession(me Identity, opts Options) *Session {
	s := &Session{
		me:        me,
		transport: opts.Transport,
		store:     opts.Store,
		analyzer:  opts.Analyzer,
		notifier:  opts.Notifier,
		language:  opts.Language,
		now:       opts.Now,
		tracker:   attendance.NewTracker(0),
		raw:       transcript.New(transcript.DefaultBucket),
		series:    timeline.Baseline(),
		busy:      make(map[Action]bool),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.language == "" {
		s.language = "en-US"
	}

	s.transport.On(EventMessage, s.onMessage)
	s.transport.On(EventMessageUpdate, s.onMessageUpdate)
	s.transport.On(EventMessageDelete, s.onMessageDelete)
	s.transport.On(EventDoubts, s.onDoubts)
	s.transport.OnReconnect(s.onReconnect)

	return s
}

// Close unsubscribes from the transport and leaves the current room.
func (s *Session) Close() {
	for _, event := range []string{EventMessage, EventMessageUpdate, EventMessageDelete, EventDoubts} {
		s.transport.Off(event)
	}

	s.mu.Lock()
	room := s.room
	s.room = ""
	s.roomGen++
	s.lectureGen++
	s.mu.Unlock()

	if room != "" {
		if err := s.transport.Leave(room); err != nil {
			log.Printf("[classroom] failed to leave room %s: %v", room, err)
		}
	}
}

// ─── Course & lecture ───

// OpenCourse switches to the room of courseID, loads its lectures and
// materials and selects the most recent lecture.
func (s *Session) OpenCourse(ctx context.Context, courseID string) error {
	if courseID == "" {
		return fmt.Errorf("%w: course is required", pkg.ErrValidation)
	}

	s.mu.Lock()
	prev := s.room
	s.room = courseID
	s.roomGen++
	roomGen := s.roomGen
	s.clearLectureLocked("")
	s.lectures = nil
	s.materials = nil
	s.mu.Unlock()

	s.tracker.Reset()

	if prev != "" && prev != courseID {
		if err := s.transport.Leave(prev); err != nil {
			log.Printf("[classroom] failed to leave room %s: %v", prev, err)
		}
	}
	if err := s.transport.Join(courseID); err != nil {
		return s.fail(fmt.Errorf("%w: join room %s: %v", pkg.ErrNetworkFailure, courseID, err))
	}

	filter := map[string]any{"course": courseID}
	var lectures []models.Lecture
	if err := s.store.Find(ctx, CollectionLectures, filter, &lectures); err != nil {
		return s.fail(err)
	}
	var materials []models.Material
	if err := s.store.Find(ctx, CollectionMaterials, filter, &materials); err != nil {
		return s.fail(err)
	}

	sortLecturesNewestFirst(lectures)

	s.mu.Lock()
	if s.roomGen != roomGen {
		s.mu.Unlock()
		return nil
	}
	s.lectures = lectures
	s.materials = materials
	s.mu.Unlock()

	if len(lectures) == 0 {
		return nil
	}
	return s.SelectLecture(ctx, lectures[0].ID)
}

// SelectLecture switches the transcript and doubt timeline to lectureID and
// loads their history from the store. Events of the new lecture that
// arrive while the history is in flight are kept.
func (s *Session) SelectLecture(ctx context.Context, lectureID string) error {
	if lectureID == "" {
		return fmt.Errorf("%w: lecture is required", pkg.ErrValidation)
	}

	s.mu.Lock()
	room := s.room
	if room == "" {
		s.mu.Unlock()
		return fmt.Errorf("%w: no course is open", pkg.ErrValidation)
	}
	s.clearLectureLocked(lectureID)
	gen := s.lectureGen
	s.mu.Unlock()

	s.tracker.Reset()

	messages, records, err := s.loadLecture(ctx, room, lectureID)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lectureGen != gen {
		return nil
	}
	s.applyHistoryLocked(messages, records)
	return nil
}

// Resync re-fetches the current lecture from the store. The transport
// replays no backlog after a reconnect, so this is how missed messages and
// doubts come back. Entries the store does not hold yet, optimistic or
// relayed, are kept.
func (s *Session) Resync(ctx context.Context) error {
	s.mu.Lock()
	room, lectureID, gen := s.room, s.lectureID, s.lectureGen
	s.mu.Unlock()

	if room == "" || lectureID == "" {
		return nil
	}

	messages, records, err := s.loadLecture(ctx, room, lectureID)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lectureGen != gen {
		return nil
	}
	s.applyHistoryLocked(messages, records)
	return nil
}

// applyHistoryLocked merges a store snapshot of the selected lecture into
// the transcript and the doubt timeline.
func (s *Session) applyHistoryLocked(messages []transcript.Message, records []timeline.Record) {
	s.raw = s.raw.Resync(messages)
	s.doubts = timeline.Merge(records, s.doubts)
	s.series = timeline.Series(s.doubts)
}

func (s *Session) loadLecture(ctx context.Context, room, lectureID string) ([]transcript.Message, []timeline.Record, error) {
	var messages []transcript.Message
	if err := s.store.Find(ctx, CollectionMessages, map[string]any{"course": room, "lecture": lectureID}, &messages); err != nil {
		return nil, nil, err
	}
	var records []timeline.Record
	if err := s.store.Find(ctx, CollectionDoubts, map[string]any{"lecture": lectureID}, &records); err != nil {
		return nil, nil, err
	}
	return messages, records, nil
}

// CreateLecture adds a lecture to the open course, dated today.
func (s *Session) CreateLecture(ctx context.Context, name, videoURL string) (models.Lecture, error) {
	s.mu.Lock()
	room, roomGen := s.room, s.roomGen
	s.mu.Unlock()
	if room == "" {
		return models.Lecture{}, fmt.Errorf("%w: no course is open", pkg.ErrValidation)
	}

	req := models.CreateLectureRequest{
		CourseID: room,
		Name:     name,
		VideoURL: videoURL,
		Date:     s.now().UTC().Format("2006-01-02"),
	}
	var lecture models.Lecture
	if err := s.store.Create(ctx, CollectionLectures, req, &lecture); err != nil {
		return models.Lecture{}, s.fail(err)
	}

	s.mu.Lock()
	if s.roomGen == roomGen {
		s.lectures = append([]models.Lecture{lecture}, s.lectures...)
	}
	s.mu.Unlock()
	return lecture, nil
}

// AddMaterial uploads files to the materials bucket and records them as one
// material of the open course. Nothing is recorded if any upload fails.
func (s *Session) AddMaterial(ctx context.Context, name string, files []File) (models.Material, error) {
	s.mu.Lock()
	room, roomGen := s.room, s.roomGen
	s.mu.Unlock()
	if room == "" {
		return models.Material{}, fmt.Errorf("%w: no course is open", pkg.ErrValidation)
	}
	if strings.TrimSpace(name) == "" || len(files) == 0 {
		return models.Material{}, fmt.Errorf("%w: material name and files are required", pkg.ErrValidation)
	}

	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := s.store.Upload(ctx, BucketMaterials, f.Name, f.Data)
		if err != nil {
			return models.Material{}, s.fail(err)
		}
		urls = append(urls, url)
	}

	req := models.CreateMaterialRequest{CourseID: room, Name: name, Files: urls}
	var material models.Material
	if err := s.store.Create(ctx, CollectionMaterials, req, &material); err != nil {
		return models.Material{}, s.fail(err)
	}

	s.mu.Lock()
	if s.roomGen == roomGen {
		s.materials = append(s.materials, material)
	}
	s.mu.Unlock()
	return material, nil
}

// ─── Chat ───

// SendMessage shows text immediately, emits it to the room and persists it.
// The returned message carries the store id when persistence succeeded.
// The speech service's "unable to transcribe" reply is emitted but never
// persisted.
func (s *Session) SendMessage(ctx context.Context, text string) (transcript.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > maxMessageRunes {
		return transcript.Message{}, fmt.Errorf("%w: message text must be 1-%d characters", pkg.ErrValidation, maxMessageRunes)
	}

	s.mu.Lock()
	if s.room == "" {
		s.mu.Unlock()
		return transcript.Message{}, fmt.Errorf("%w: no course is open", pkg.ErrValidation)
	}
	local := transcript.Message{
		CorrelationID: uuid.NewString(),
		Room:          s.room,
		LectureID:     s.lectureID,
		SenderID:      s.me.ID,
		SenderName:    s.me.Name,
		Text:          text,
		Timestamp:     s.now().UTC(),
	}
	gen := s.lectureGen
	s.raw = s.raw.Merge(local, transcript.OriginLocal)
	s.mu.Unlock()

	if err := s.transport.Emit(EventMessage, local); err != nil {
		log.Printf("[classroom] failed to emit message %s: %v", local.CorrelationID, err)
	}

	if strings.EqualFold(text, UnableToTranscribe) {
		return local, nil
	}

	req := models.CreateMessageRequest{
		CorrelationID: local.CorrelationID,
		Room:          local.Room,
		LectureID:     local.LectureID,
		Text:          local.Text,
		Timestamp:     &local.Timestamp,
	}
	var stored transcript.Message
	if err := s.store.Create(ctx, CollectionMessages, req, &stored); err != nil {
		return local, s.fail(err)
	}

	s.mu.Lock()
	if s.lectureGen == gen {
		s.raw = s.raw.Merge(stored, transcript.OriginStore)
	}
	s.mu.Unlock()
	return stored, nil
}

// EditMessage changes the text of a persisted message.
func (s *Session) EditMessage(ctx context.Context, id, text string) error {
	text = strings.TrimSpace(text)
	if id == "" || text == "" || utf8.RuneCountInString(text) > maxMessageRunes {
		return fmt.Errorf("%w: message id and 1-%d characters of text are required", pkg.ErrValidation, maxMessageRunes)
	}

	if err := s.store.Update(ctx, CollectionMessages, id, models.UpdateMessageRequest{Text: text}, nil); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.raw = s.raw.Edit(id, text)
	s.mu.Unlock()
	return nil
}

// DeleteMessage removes a persisted message.
func (s *Session) DeleteMessage(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: message id is required", pkg.ErrValidation)
	}

	if err := s.store.Delete(ctx, CollectionMessages, id); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.raw = s.raw.Remove(id)
	s.mu.Unlock()
	return nil
}

// Transcribe turns recorded audio into text. language falls back to the
// session default.
func (s *Session) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	if !s.acquire(ActionTranscribe) {
		return "", pkg.ErrBusy
	}
	defer s.release(ActionTranscribe)

	if language == "" {
		language = s.language
	}
	text, err := s.analyzer.SpeechToText(ctx, audio, mimeType, language)
	if err != nil {
		return "", s.fail(err)
	}
	return text, nil
}

// SendVoice transcribes audio and sends the result as a chat message. A
// transcription that finishes after a room switch is dropped.
func (s *Session) SendVoice(ctx context.Context, audio []byte, mimeType, language string) (transcript.Message, error) {
	s.mu.Lock()
	roomGen := s.roomGen
	s.mu.Unlock()

	text, err := s.Transcribe(ctx, audio, mimeType, language)
	if err != nil {
		return transcript.Message{}, err
	}

	s.mu.Lock()
	stale := s.roomGen != roomGen
	s.mu.Unlock()
	if stale {
		log.Printf("[classroom] dropping transcription finished after a room switch")
		return transcript.Message{}, pkg.ErrStaleResult
	}
	return s.SendMessage(ctx, text)
}

// SetSummaryMode toggles the summarized view. Turning it on asks the
// summarizer for a condensed list; turning it off restores the raw
// transcript, which is never replaced by the summary.
func (s *Session) SetSummaryMode(ctx context.Context, on bool) error {
	if !on {
		s.mu.Lock()
		s.summaryOn = false
		s.summary = nil
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	gen := s.lectureGen
	entries := s.raw.Entries()
	s.mu.Unlock()

	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		texts = append(texts, e.Text)
	}

	out, err := s.analyzer.Summarize(ctx, texts)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lectureGen != gen {
		return pkg.ErrStaleResult
	}
	s.summary = transcript.Summarized(out, s.now().UTC())
	s.summaryOn = true
	return nil
}

// ─── Doubts ───

// doubtPayload is what the transport and the store receive for a spike.
// EventID lets the sender drop its own echo and lets peers tell a repeated
// delivery from a second spike of the same value.
type doubtPayload struct {
	EventID   string  `json:"event_id"`
	Room      string  `json:"room"`
	LectureID string  `json:"lecture_id"`
	Doubts    int     `json:"doubts"`
	Time      float64 `json:"time"`
}

// RaiseDoubts records count doubts at position at (seconds into the
// lecture video), emits them to the room and persists them.
func (s *Session) RaiseDoubts(ctx context.Context, count int, at float64) error {
	if count < 0 || at < 0 {
		return fmt.Errorf("%w: doubts and time must be non-negative", pkg.ErrValidation)
	}

	s.mu.Lock()
	if s.room == "" || s.lectureID == "" {
		s.mu.Unlock()
		return fmt.Errorf("%w: no lecture is selected", pkg.ErrValidation)
	}
	payload := doubtPayload{EventID: uuid.NewString(), Room: s.room, LectureID: s.lectureID, Doubts: count, Time: at}
	ev := timeline.Event{ID: payload.EventID, Count: count, Time: at}
	s.doubts = append(s.doubts, ev)
	s.series = timeline.Ingest(s.series, ev)
	s.mu.Unlock()

	if err := s.transport.Emit(EventDoubts, payload); err != nil {
		log.Printf("[classroom] failed to emit doubts: %v", err)
	}
	if err := s.store.Create(ctx, CollectionDoubts, payload, nil); err != nil {
		return s.fail(err)
	}
	return nil
}

// CaptureDoubts asks the vision service how many doubts an image of the
// classroom shows and raises them at position at.
func (s *Session) CaptureDoubts(ctx context.Context, image []byte, mimeType string, at float64) (int, error) {
	if !s.acquire(ActionDoubtCapture) {
		return 0, pkg.ErrBusy
	}
	defer s.release(ActionDoubtCapture)

	s.mu.Lock()
	gen := s.lectureGen
	s.mu.Unlock()

	text, err := s.analyzer.ImageToDoubts(ctx, image, mimeType)
	if err != nil {
		return 0, s.fail(err)
	}
	count, err := parseCount(text)
	if err != nil {
		return 0, s.fail(err)
	}

	s.mu.Lock()
	stale := s.lectureGen != gen
	s.mu.Unlock()
	if stale {
		log.Printf("[classroom] dropping doubt capture finished after a lecture switch")
		return 0, pkg.ErrStaleResult
	}

	return count, s.RaiseDoubts(ctx, count, at)
}

func parseCount(text string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("%w: doubt count %q", pkg.ErrExternalCallFailed, text)
	}
	return int(f), nil
}

// ─── Attendance ───

// SetClassStrength sets the class size used by captures and the percentage.
func (s *Session) SetClassStrength(n int) error {
	return s.tracker.SetClassStrength(n)
}

// CaptureAttendance sends an image of the class together with the rolls
// still absent and merges the detected rolls into the presence set. A
// result that arrives after a reset is dropped with pkg.ErrStaleResult.
func (s *Session) CaptureAttendance(ctx context.Context, image []byte, mimeType string) ([]int, error) {
	if !s.acquire(ActionAttendanceCapture) {
		return nil, pkg.ErrBusy
	}
	defer s.release(ActionAttendanceCapture)

	ticket, err := s.tracker.Begin()
	if err != nil {
		return nil, err
	}

	detected, err := s.analyzer.ImageToRollNumbers(ctx, image, mimeType, ticket.Absent, ticket.ClassStrength)
	if err != nil {
		return nil, s.fail(err)
	}

	present, err := s.tracker.Apply(ticket, detected)
	if errors.Is(err, pkg.ErrStaleResult) {
		log.Printf("[classroom] dropping attendance capture finished after a reset")
	}
	return present, err
}

// ResetAttendance clears the presence set. In-flight captures become stale.
func (s *Session) ResetAttendance() {
	s.tracker.Reset()
}

// Present returns the sorted presence set.
func (s *Session) Present() []int {
	return s.tracker.Present()
}

// CanFinalizeAttendance reports whether a percentage can be computed.
func (s *Session) CanFinalizeAttendance() bool {
	return attendance.CanFinalize(s.tracker.ClassStrength())
}

// SubmitAttendance persists the presence set of the selected lecture.
// notifyEmail asks the server to mail a summary to the coordinator.
func (s *Session) SubmitAttendance(ctx context.Context, notifyEmail bool) (models.Attendance, error) {
	s.mu.Lock()
	room, lectureID := s.room, s.lectureID
	s.mu.Unlock()
	if room == "" || lectureID == "" {
		return models.Attendance{}, fmt.Errorf("%w: no lecture is selected", pkg.ErrValidation)
	}

	if _, err := s.tracker.Percentage(); err != nil {
		return models.Attendance{}, err
	}

	req := models.CreateAttendanceRequest{
		LectureID:     lectureID,
		CourseID:      room,
		Present:       s.tracker.Present(),
		ClassStrength: s.tracker.ClassStrength(),
		NotifyEmail:   notifyEmail,
	}
	var record models.Attendance
	if err := s.store.Create(ctx, CollectionAttendance, req, &record); err != nil {
		return models.Attendance{}, s.fail(err)
	}
	return record, nil
}

// ─── Views ───

// Messages returns the list to display: the summary when summary mode is
// on, the raw transcript otherwise.
func (s *Session) Messages() []transcript.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summaryOn {
		return append([]transcript.Message(nil), s.summary...)
	}
	return s.raw.Entries()
}

// Transcript returns the raw transcript regardless of summary mode.
func (s *Session) Transcript() transcript.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// SummaryMode reports whether the summarized view is on.
func (s *Session) SummaryMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryOn
}

// Timeline returns the doubt series of the selected lecture.
func (s *Session) Timeline() []timeline.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]timeline.Point(nil), s.series...)
}

func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

func (s *Session) LectureID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lectureID
}

// Lectures returns the lectures of the open course, newest first.
func (s *Session) Lectures() []models.Lecture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Lecture(nil), s.lectures...)
}

func (s *Session) Materials() []models.Material {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Material(nil), s.materials...)
}

// Busy reports whether action is in flight.
func (s *Session) Busy(action Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[action]
}

// ─── Transport events ───

func (s *Session) onMessage(raw json.RawMessage) {
	var m transcript.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		log.Printf("[classroom] skipping malformed message event: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inScopeLocked(m.Room, m.LectureID) {
		return
	}
	s.raw = s.raw.Merge(m, transcript.OriginRemote)
}

func (s *Session) onMessageUpdate(raw json.RawMessage) {
	var m transcript.Message
	if err := json.Unmarshal(raw, &m); err != nil || m.ID == "" {
		log.Printf("[classroom] skipping malformed message_update event")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inScopeLocked(m.Room, m.LectureID) {
		return
	}
	// A peer copy known only by correlation id adopts the id first.
	s.raw = s.raw.Merge(m, transcript.OriginRemote).Edit(m.ID, m.Text)
}

func (s *Session) onMessageDelete(raw json.RawMessage) {
	var data struct {
		ID            string `json:"id"`
		CorrelationID string `json:"correlation_id"`
		Room          string `json:"room"`
		LectureID     string `json:"lecture_id"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("[classroom] skipping malformed message_delete event: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inScopeLocked(data.Room, data.LectureID) {
		return
	}
	s.raw = s.raw.Remove(data.ID).RemoveCorrelated(data.CorrelationID)
}

func (s *Session) onDoubts(raw json.RawMessage) {
	var data struct {
		timeline.Record
		Room      string `json:"room"`
		LectureID string `json:"lecture_id"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("[classroom] skipping malformed doubts event: %v", err)
		return
	}
	ev, ok := data.Record.Event()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inScopeLocked(data.Room, data.LectureID) {
		return
	}
	// the hub echoes our own spikes back, and delivery is at-least-once
	if timeline.Contains(s.doubts, ev.ID) {
		return
	}
	s.doubts = append(s.doubts, ev)
	s.series = timeline.Ingest(s.series, ev)
}

func (s *Session) onReconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	if err := s.Resync(ctx); err != nil {
		log.Printf("[classroom] resync after reconnect failed: %v", err)
	}
}

// ─── helpers ───

// inScopeLocked reports whether an event belongs to the open room and
// lecture. Events without a lecture id are room-wide.
func (s *Session) inScopeLocked(room, lectureID string) bool {
	if room == "" || room != s.room {
		return false
	}
	return lectureID == "" || lectureID == s.lectureID
}

func (s *Session) clearLectureLocked(lectureID string) {
	s.lectureID = lectureID
	s.lectureGen++
	s.raw = transcript.New(transcript.DefaultBucket)
	s.doubts = nil
	s.series = timeline.Baseline()
	s.summary = nil
	s.summaryOn = false
}

func (s *Session) acquire(action Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[action] {
		return false
	}
	s.busy[action] = true
	return true
}

func (s *Session) release(action Action) {
	s.mu.Lock()
	delete(s.busy, action)
	s.mu.Unlock()
}

// fail logs err and hands it to the notifier, then returns it.
func (s *Session) fail(err error) error {
	log.Printf("[classroom] %v", err)
	if s.notifier != nil {
		s.notifier.Notify(err)
	}
	return err
}

// sortLecturesNewestFirst orders by lecture date, then creation time.
func sortLecturesNewestFirst(lectures []models.Lecture) {
	sort.SliceStable(lectures, func(i, j int) bool {
		if lectures[i].Date != lectures[j].Date {
			return lectures[i].Date > lectures[j].Date
		}
		return lectures[i].CreatedAt.After(lectures[j].CreatedAt)
	})
}
