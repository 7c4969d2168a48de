package voice

import "sync"

// MockWakeWordDetector is a scriptable detector for tests and for running the
// service without platform audio providers.
type MockWakeWordDetector struct {
	mu          sync.Mutex
	running     bool
	onDetection func(keywordIndex int, keyword string, confidence float64)
}

func NewMockWakeWordDetector() *MockWakeWordDetector {
	return &MockWakeWordDetector{}
}

func (m *MockWakeWordDetector) Start(_ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	return nil
}

func (m *MockWakeWordDetector) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

func (m *MockWakeWordDetector) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
}

func (m *MockWakeWordDetector) OnDetection(fn func(int, string, float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDetection = fn
}

// TriggerDetection simulates hearing the keyword.
func (m *MockWakeWordDetector) TriggerDetection(keyword string, confidence float64) {
	m.mu.Lock()
	fn := m.onDetection
	running := m.running
	m.mu.Unlock()
	if running && fn != nil {
		fn(0, keyword, confidence)
	}
}

func (m *MockWakeWordDetector) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// MockSpeechRecognizer is a scriptable recognizer.
type MockSpeechRecognizer struct {
	mu        sync.Mutex
	running   bool
	onPartial func(text string)
	onFinal   func(text string, confidence float64)
	onError   func(err error)
}

func NewMockSpeechRecognizer() *MockSpeechRecognizer {
	return &MockSpeechRecognizer{}
}

func (m *MockSpeechRecognizer) Start(_ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	return nil
}

func (m *MockSpeechRecognizer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

func (m *MockSpeechRecognizer) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
}

func (m *MockSpeechRecognizer) OnPartialResult(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPartial = fn
}

func (m *MockSpeechRecognizer) OnFinalResult(fn func(string, float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFinal = fn
}

func (m *MockSpeechRecognizer) OnError(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

func (m *MockSpeechRecognizer) EmitPartial(text string) {
	m.mu.Lock()
	fn := m.onPartial
	running := m.running
	m.mu.Unlock()
	if running && fn != nil {
		fn(text)
	}
}

func (m *MockSpeechRecognizer) EmitFinal(text string, confidence float64) {
	m.mu.Lock()
	fn := m.onFinal
	running := m.running
	m.mu.Unlock()
	if running && fn != nil {
		fn(text, confidence)
	}
}

func (m *MockSpeechRecognizer) EmitError(err error) {
	m.mu.Lock()
	fn := m.onError
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (m *MockSpeechRecognizer) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// MockSpeechSynthesizer records spoken text and fires start/finish callbacks
// synchronously from Speak unless autoFinish is disabled.
type MockSpeechSynthesizer struct {
	mu         sync.Mutex
	spoken     []string
	speaking   string
	autoFinish bool
	onStarted  func(utteranceID string)
	onFinished func(utteranceID string)
	onError    func(err error)
}

func NewMockSpeechSynthesizer() *MockSpeechSynthesizer {
	return &MockSpeechSynthesizer{autoFinish: true}
}

// SetAutoFinish controls whether Speak fires OnFinished immediately. Disable
// it to hold an utterance open, then call FinishCurrent.
func (m *MockSpeechSynthesizer) SetAutoFinish(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoFinish = v
}

func (m *MockSpeechSynthesizer) Speak(utteranceID, text string) error {
	m.mu.Lock()
	m.spoken = append(m.spoken, text)
	m.speaking = utteranceID
	started := m.onStarted
	finished := m.onFinished
	auto := m.autoFinish
	m.mu.Unlock()

	if started != nil {
		started(utteranceID)
	}
	if auto {
		m.mu.Lock()
		m.speaking = ""
		m.mu.Unlock()
		if finished != nil {
			finished(utteranceID)
		}
	}
	return nil
}

func (m *MockSpeechSynthesizer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speaking = ""
	return nil
}

func (m *MockSpeechSynthesizer) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speaking = ""
}

func (m *MockSpeechSynthesizer) OnStarted(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStarted = fn
}

func (m *MockSpeechSynthesizer) OnFinished(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFinished = fn
}

func (m *MockSpeechSynthesizer) OnError(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// FinishCurrent completes the held utterance when autoFinish is off.
func (m *MockSpeechSynthesizer) FinishCurrent() {
	m.mu.Lock()
	id := m.speaking
	m.speaking = ""
	fn := m.onFinished
	m.mu.Unlock()
	if id != "" && fn != nil {
		fn(id)
	}
}

func (m *MockSpeechSynthesizer) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.spoken))
	copy(out, m.spoken)
	return out
}
