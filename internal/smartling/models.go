package smartling

import "encoding/json"

// envelope is the wrapper every API response arrives in.
type envelope struct {
	Response struct {
		Code string          `json:"code"`
		Data json.RawMessage `json:"data"`
	} `json:"response"`
}

// AuthData is the token payload returned by authenticate and refresh.
type AuthData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Project is one project row listed under an account.
type Project struct {
	ProjectID   string `json:"projectId"`
	ProjectName string `json:"projectName"`
}

// Job is one translation job. Different API versions name the identifier
// differently, so unmarshalling accepts all known spellings.
type Job struct {
	UID    string
	Name   string
	Status string
}

func (j *Job) UnmarshalJSON(data []byte) error {
	var raw struct {
		TranslationJobUID string `json:"translationJobUid"`
		JobID             string `json:"jobId"`
		ID                string `json:"id"`
		JobName           string `json:"jobName"`
		Name              string `json:"name"`
		JobStatus         string `json:"jobStatus"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	j.UID = firstNonEmpty(raw.TranslationJobUID, raw.JobID, raw.ID)
	j.Name = firstNonEmpty(raw.JobName, raw.Name)
	j.Status = raw.JobStatus
	return nil
}

// JobFile is one file attached to a job.
type JobFile struct {
	URI string
}

func (f *JobFile) UnmarshalJSON(data []byte) error {
	var raw struct {
		URI     string `json:"uri"`
		FileURI string `json:"fileUri"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.URI = firstNonEmpty(raw.URI, raw.FileURI)
	return nil
}

// SourceString is one source string row from the strings API.
type SourceString struct {
	Hashcode string
	Text     string
}

func (s *SourceString) UnmarshalJSON(data []byte) error {
	var raw struct {
		Hashcode         string `json:"hashcode"`
		ParsedStringText string `json:"parsedStringText"`
		StringText       string `json:"stringText"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Hashcode = raw.Hashcode
	s.Text = firstNonEmpty(raw.ParsedStringText, raw.StringText)
	return nil
}

// TranslationItem is one translated string row. Only the first translation
// variant is kept.
type TranslationItem struct {
	Hashcode    string
	SourceText  string
	Translation string
}

func (t *TranslationItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Hashcode         string `json:"hashcode"`
		ParsedStringText string `json:"parsedStringText"`
		StringText       string `json:"stringText"`
		Translations     []struct {
			Translation string `json:"translation"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Hashcode = raw.Hashcode
	t.SourceText = firstNonEmpty(raw.ParsedStringText, raw.StringText)
	if len(raw.Translations) > 0 {
		t.Translation = raw.Translations[0].Translation
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
