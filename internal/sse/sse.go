package sse

import "sync"

// Hub — pub/sub для SSE по runID.
// Поток заводится через Open и живёт до Forget. Сообщения копятся в истории,
// поэтому подписчик, пришедший поздно, получает всё с начала.
// После Close канал подписчика закрывается.
type Hub struct {
	mu     sync.Mutex
	topics map[string]*topic
	buf    int
}

type topic struct {
	history []string
	subs    []chan string
	closed  bool
}

// NewHub создаёт hub; buf — ёмкость канала одного подписчика
func NewHub(buf int) *Hub {
	if buf <= 0 {
		buf = 256
	}
	return &Hub{topics: map[string]*topic{}, buf: buf}
}

// Open заводит поток id; повторный вызов ничего не меняет
func (h *Hub) Open(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.topics[id]; !ok {
		h.topics[id] = &topic{}
	}
}

// Forget удаляет поток id вместе с историей
func (h *Hub) Forget(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[id]
	if !ok {
		return
	}
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = nil
	t.closed = true
	delete(h.topics, id)
}

// Len — число потоков в памяти
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics)
}

// Subscribe подписывает клиента на id. Возвращает уже опубликованные сообщения,
// канал новых сообщений и функцию отписки. Для неизвестного id канал сразу закрыт.
func (h *Hub) Subscribe(id string) ([]string, <-chan string, func()) {
	ch := make(chan string, h.buf)

	h.mu.Lock()
	t, ok := h.topics[id]
	if !ok {
		h.mu.Unlock()
		close(ch)
		return nil, ch, func() {}
	}
	backlog := append([]string(nil), t.history...)
	if t.closed {
		close(ch)
	} else {
		t.subs = append(t.subs, ch)
	}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, c := range t.subs {
			if c == ch {
				t.subs = append(t.subs[:i], t.subs[i+1:]...)
				close(ch)
				break
			}
		}
	}

	return backlog, ch, cancel
}

// Publish отсылает сообщение всем подписчикам runID и запоминает его
func (h *Hub) Publish(id, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[id]
	if !ok || t.closed {
		return
	}
	t.history = append(t.history, msg)
	for _, ch := range t.subs {
		select {
		case ch <- msg:
		default:
			// медленный клиент теряет сообщение, но не тормозит расчёт
		}
	}
}

// Close завершает поток id: каналы подписчиков закрываются, история остаётся
func (h *Hub) Close(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[id]
	if !ok || t.closed {
		return
	}
	t.closed = true
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = nil
}
