package chat

import (
	"bytes"
	"text/template"

	"github.com/pkg/errors"
)

// greetingResponses short-circuit the LLM for greetings.
var greetingResponses = []string{
	"Hello! I'm your AI tutor. What would you like to learn about today?",
	"Hi there! Ready to study? Ask me anything about your subjects.",
	"Hey! Great to see you. What can I help you with today?",
}

// fallbackResponse is returned when generation fails; upstream errors never
// reach chat users.
const fallbackResponse = "I'm having trouble processing your question right now. " +
	"Please try again in a moment, or ask your teacher for help."

// UnknownParentResponse is sent to WhatsApp senders whose number does not
// match any student's parent phone.
const UnknownParentResponse = "Hello! This number is not linked to any student profile. " +
	"Please contact the school office to register for updates about your child."

type tutorPromptData struct {
	GradeLevel      string
	LearningStyle   string
	Interests       []string
	AcademicHistory string
	Progress        []string
	Feedback        []string
	Documents       []Document
	Recent          []Interaction
	Subject         string
	Intent          string
	Question        string
}

type parentPromptData struct {
	StudentCode    string
	GradeLevel     string
	AttendanceRate string
	RecentAbsences int
	RecentScores   []string
	Progress       []string
	Feedback       []string
	Interests      []string
	Question       string
}

var tutorPromptTmpl = template.Must(template.New("tutor").Parse(`You are a friendly, patient AI tutor for a {{.GradeLevel}} student.

Student profile:
- Grade level: {{.GradeLevel}}
- Learning style: {{.LearningStyle}}
{{- if .Interests}}
- Interests: {{range $i, $in := .Interests}}{{if $i}}, {{end}}{{$in}}{{end}}
{{- end}}
- Academic history: {{.AcademicHistory}}
{{- if .Progress}}

Current performance:
{{- range .Progress}}
- {{.}}
{{- end}}
{{- end}}
{{- if .Feedback}}

Recent teacher feedback:
{{- range .Feedback}}
- {{.}}
{{- end}}
{{- end}}
{{- if .Documents}}

Relevant learning material:
{{- range .Documents}}
- {{.Content}}
{{- end}}
{{- end}}
{{- if .Recent}}

Recent conversation:
{{- range .Recent}}
Student: {{.Question}}
Tutor: {{.Response}}
{{- end}}
{{- end}}

The student asked ({{.Intent}}{{if .Subject}}, subject: {{.Subject}}{{end}}): {{.Question}}

Answer in a clear, encouraging tone adapted to the student's grade level and
learning style. Use the learning material when it is relevant. Keep the answer
under 200 words.`))

var parentPromptTmpl = template.Must(template.New("parent").Parse(`You are a school assistant replying to a parent over WhatsApp about their child ({{.StudentCode}}, {{.GradeLevel}}).

Child's record:
- Attendance: {{.AttendanceRate}}{{if .RecentAbsences}} ({{.RecentAbsences}} recent absences){{end}}
{{- if .RecentScores}}
- Recent assignment scores (out of 10): {{range $i, $s := .RecentScores}}{{if $i}}, {{end}}{{$s}}{{end}}
{{- end}}
{{- if .Progress}}
- Subject averages:
{{- range .Progress}}
  - {{.}}
{{- end}}
{{- end}}
{{- if .Feedback}}
- Teacher feedback:
{{- range .Feedback}}
  - {{.}}
{{- end}}
{{- end}}
{{- if .Interests}}
- Interests: {{range $i, $in := .Interests}}{{if $i}}, {{end}}{{$in}}{{end}}
{{- end}}

The parent asked: {{.Question}}

Reply warmly and concretely in under 150 words. Base everything on the record
above; if the record does not cover the question, say so and suggest
contacting the class teacher.`))

func renderPrompt(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "rendering %s prompt", tmpl.Name())
	}
	return buf.String(), nil
}
