package solver

import "encoding/json"

// Summary — ответ для внешнего слоя: либо {"error": ...}, либо
// {"iterations": ..., "result": ..., "log": [...]}.
type Summary struct {
	Error  string
	Result *Result
}

// Summarize собирает Summary из результата Solve
func Summarize(res Result, err error) Summary {
	if err != nil {
		return Summary{Error: UserMessage(err)}
	}
	return Summary{Result: &res}
}

// OK — решение получено
func (s Summary) OK() bool { return s.Result != nil }

func (s Summary) MarshalJSON() ([]byte, error) {
	if s.Result == nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{s.Error})
	}
	res := *s.Result
	if res.Trace == nil {
		res.Trace = []Iter{}
	}
	return json.Marshal(res)
}

func (s *Summary) UnmarshalJSON(data []byte) error {
	var probe struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Error != nil {
		*s = Summary{Error: *probe.Error}
		return nil
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return err
	}
	*s = Summary{Result: &res}
	return nil
}
