package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/punchd-io/punchd/internal/domain/model"
)

// loginResponse is the AES-decrypted login payload.
type loginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	RoleKey  string `json:"roleKey"`
	UserType string `json:"userType"`
	Nickname string `json:"nikeName"`
	OrgJSON  struct {
		SnowFlakeID string `json:"snowFlakeId"`
	} `json:"orgJson"`
}

// Login authenticates the account: pass the slider captcha, POST the
// encrypted credentials, decrypt the response into SessionState.
func (c *Client) Login(ctx context.Context) error {
	captcha, err := c.passSliderCaptcha(ctx)
	if err != nil {
		return fmt.Errorf("login captcha: %w", err)
	}

	phoneEnc, err := EncryptField(c.creds.Phone)
	if err != nil {
		return fmt.Errorf("encrypt phone: %w", err)
	}
	passwordEnc, err := EncryptField(c.creds.Password)
	if err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}
	t, err := c.encryptedTimestamp()
	if err != nil {
		return fmt.Errorf("encrypt timestamp: %w", err)
	}

	rsp, err := c.call(ctx, callParams{
		endpoint: "session/user/v6/login",
		payload: map[string]any{
			"phone":     phoneEnc,
			"password":  passwordEnc,
			"captcha":   captcha,
			"loginType": "android",
			"uuid":      newClientUID(),
			"device":    "android",
			"version":   appVersion,
			"t":         t,
		},
		skipRelogin: true,
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var encrypted string
	if err := json.Unmarshal(rsp.Data, &encrypted); err != nil {
		return fmt.Errorf("decode login payload: %w", err)
	}
	plaintext, err := DecryptField(encrypted)
	if err != nil {
		return fmt.Errorf("decrypt login payload: %w", err)
	}

	var info loginResponse
	if err := json.Unmarshal([]byte(plaintext), &info); err != nil {
		return fmt.Errorf("decode user info: %w", err)
	}

	c.State.Token = info.Token
	c.State.UserID = info.UserID
	c.State.RoleKey = info.RoleKey
	c.State.UserType = info.UserType
	c.State.Nickname = info.Nickname
	c.State.OrgID = info.OrgJSON.SnowFlakeID

	c.logger.Info("logged in", "user_type", info.UserType)
	return nil
}

// planResponse is one internship plan row.
type planResponse struct {
	PlanID    string `json:"planId"`
	PlanName  string `json:"planName"`
	PlanPaper struct {
		DayPaperNum   int `json:"dayPaperNum"`
		WeekPaperNum  int `json:"weekPaperNum"`
		MonthPaperNum int `json:"monthPaperNum"`
	} `json:"planPaper"`
}

// FetchPlan populates the active internship plan and its paper quotas.
// Teacher accounts carry no plan; reports and student check-ins need one.
func (c *Client) FetchPlan(ctx context.Context) error {
	t, err := c.encryptedTimestamp()
	if err != nil {
		return err
	}

	rsp, err := c.call(ctx, callParams{
		endpoint:   "practice/plan/v3/getPlanByStu",
		payload:    map[string]any{"pageSize": 999999, "t": t},
		signFields: []string{c.State.UserID, c.State.RoleKey},
		authed:     true,
	})
	if err != nil {
		return fmt.Errorf("fetch plan: %w", err)
	}

	var plans []planResponse
	if err := json.Unmarshal(rsp.Data, &plans); err != nil {
		return fmt.Errorf("decode plans: %w", err)
	}
	if len(plans) == 0 {
		return errors.New("account has no internship plan")
	}

	plan := plans[0]
	c.State.PlanID = plan.PlanID
	c.State.PlanName = plan.PlanName
	c.State.DayPaperQuota = plan.PlanPaper.DayPaperNum
	c.State.WeekPaperQuota = plan.PlanPaper.WeekPaperNum
	c.State.MonthPaperQuota = plan.PlanPaper.MonthPaperNum
	return nil
}

// CheckinRecord is the platform's view of one check-in row.
type CheckinRecord struct {
	Type       string `json:"type"`
	Address    string `json:"address"`
	CreateTime string `json:"createTime"`
}

// GetCheckinInfo returns the most recent check-in of the current month, or
// nil when the month has none.
func (c *Client) GetCheckinInfo(ctx context.Context) (*CheckinRecord, error) {
	endpoint := "attendence/clock/v2/listSynchro"
	if c.State.UserType == string(model.UserTypeTeacher) {
		endpoint = "attendence/clock/teacher/v1/listSynchro"
	}

	t, err := c.encryptedTimestamp()
	if err != nil {
		return nil, err
	}
	start, end := monthBounds(c.now())

	rsp, err := c.call(ctx, callParams{
		endpoint: endpoint,
		payload: map[string]any{
			"startTime": start,
			"endTime":   end,
			"t":         t,
		},
		authed: true,
	})
	if err != nil {
		return nil, fmt.Errorf("get checkin info: %w", err)
	}

	var records []CheckinRecord
	if err := json.Unmarshal(rsp.Data, &records); err != nil {
		return nil, fmt.Errorf("decode checkin records: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// ClockInRequest carries the caller-provided fields of one check-in
// submission; the wrapper fills in identity, location, and protocol fields.
type ClockInRequest struct {
	Type              model.CheckinType
	Description       string
	Attachments       string
	LastDetailAddress string
	Location          model.Location
}

// SubmitClockIn submits one check-in. When the server answers with the
// behavioral-verification signal it solves the click-word captcha and
// resubmits exactly once.
func (c *Client) SubmitClockIn(ctx context.Context, req ClockInRequest) error {
	endpoint := "attendence/clock/teacher/v2/save"
	var signFields []string
	if c.State.UserType != string(model.UserTypeTeacher) {
		endpoint = "attendence/clock/v5/save"
		signFields = []string{
			c.creds.Device,
			string(req.Type),
			c.State.PlanID,
			c.State.UserID,
			req.Location.Address,
		}
	}

	t, err := c.encryptedTimestamp()
	if err != nil {
		return err
	}

	payload := map[string]any{
		"country":           "中国",
		"createTime":        c.now().Format("2006-01-02 15:04:05"),
		"description":       nullableString(req.Description),
		"device":            c.creds.Device,
		"state":             "NORMAL",
		"type":              req.Type,
		"planId":            c.State.PlanID,
		"attachments":       nullableString(req.Attachments),
		"userId":            c.State.UserID,
		"lastDetailAddress": nullableString(req.LastDetailAddress),
		"address":           req.Location.Address,
		"latitude":          req.Location.Latitude,
		"longitude":         req.Location.Longitude,
		"province":          req.Location.Province,
		"city":              req.Location.City,
		"t":                 t,
	}

	_, err = c.call(ctx, callParams{
		endpoint:   endpoint,
		payload:    payload,
		signFields: signFields,
		authed:     true,
	})
	if errors.Is(err, ErrVerificationRequired) {
		c.logger.Info("behavioral verification demanded, solving click-word captcha")
		assertion, solveErr := c.solveClickWordCaptcha(ctx)
		if solveErr != nil {
			return fmt.Errorf("submit clock-in: %w", solveErr)
		}
		payload["captcha"] = assertion
		_, err = c.call(ctx, callParams{
			endpoint:   endpoint,
			payload:    payload,
			signFields: signFields,
			authed:     true,
		})
	}
	if err != nil {
		return fmt.Errorf("submit clock-in: %w", err)
	}
	return nil
}

// SubmittedReport is one row of the submitted-papers listing.
type SubmittedReport struct {
	CreateTime string `json:"createTime"`
	Weeks      string `json:"weeks"`
	Yearmonth  string `json:"yearmonth"`
	Title      string `json:"title"`
}

// SubmittedReports is the listing plus the server-side count of papers
// already submitted for the period type.
type SubmittedReports struct {
	Reports []SubmittedReport
	Count   int
}

// GetSubmittedReports lists already-submitted papers of one period type.
// periodType is the wire value: day, week, or month.
func (c *Client) GetSubmittedReports(ctx context.Context, periodType string) (*SubmittedReports, error) {
	t, err := c.encryptedTimestamp()
	if err != nil {
		return nil, err
	}

	rsp, err := c.call(ctx, callParams{
		endpoint: "practice/paper/v2/listByStu",
		payload: map[string]any{
			"currPage":   1,
			"pageSize":   10,
			"reportType": periodType,
			"planId":     c.State.PlanID,
			"t":          t,
		},
		signFields: []string{c.State.UserID, c.State.RoleKey, periodType},
		authed:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("get submitted reports: %w", err)
	}

	var reports []SubmittedReport
	if len(rsp.Data) > 0 {
		if err := json.Unmarshal(rsp.Data, &reports); err != nil {
			return nil, fmt.Errorf("decode submitted reports: %w", err)
		}
	}
	return &SubmittedReports{Reports: reports, Count: rsp.Flag}, nil
}

// ReportSubmission carries one paper submission.
type ReportSubmission struct {
	Title       string
	Content     string
	Attachments string
	PeriodType  string // day, week, month
	JobID       string
	ReportTime  string
	StartTime   string
	EndTime     string
	Weeks       string
	Yearmonth   string
	FormFields  []FormField
}

// SubmitReport submits one daily, weekly, or monthly paper. The platform
// expects every known field present, null when unused.
func (c *Client) SubmitReport(ctx context.Context, sub ReportSubmission) error {
	t, err := c.encryptedTimestamp()
	if err != nil {
		return err
	}

	payload := emptyReportPayload()
	payload["content"] = sub.Content
	payload["planId"] = c.State.PlanID
	payload["reportType"] = sub.PeriodType
	payload["title"] = sub.Title
	payload["jobId"] = sub.JobID
	payload["attachments"] = sub.Attachments
	payload["formFieldDtoList"] = sub.FormFields
	payload["fieldEntityList"] = []any{}
	payload["isWarning"] = 0
	payload["reportTime"] = sub.ReportTime
	payload["t"] = t
	if sub.StartTime != "" {
		payload["startTime"] = sub.StartTime
	}
	if sub.EndTime != "" {
		payload["endTime"] = sub.EndTime
	}
	if sub.Weeks != "" {
		payload["weeks"] = sub.Weeks
	}
	if sub.Yearmonth != "" {
		payload["yearmonth"] = sub.Yearmonth
	}

	_, err = c.call(ctx, callParams{
		endpoint: "practice/paper/v6/save",
		payload:  payload,
		signFields: []string{
			c.State.UserID,
			sub.PeriodType,
			c.State.PlanID,
			sub.Title,
		},
		authed: true,
	})
	if err != nil {
		return fmt.Errorf("submit report: %w", err)
	}
	return nil
}

// WeekPeriod is one row of the weekly-period listing.
type WeekPeriod struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// GetWeeks returns the report week periods, current week first.
func (c *Client) GetWeeks(ctx context.Context) ([]WeekPeriod, error) {
	t, err := c.encryptedTimestamp()
	if err != nil {
		return nil, err
	}

	rsp, err := c.call(ctx, callParams{
		endpoint: "practice/paper/v3/getWeeks1",
		payload:  map[string]any{"t": t},
		authed:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("get weeks: %w", err)
	}

	var weeks []WeekPeriod
	if err := json.Unmarshal(rsp.Data, &weeks); err != nil {
		return nil, fmt.Errorf("decode weeks: %w", err)
	}
	return weeks, nil
}

// FormField is one questionnaire field attached to a paper form.
type FormField struct {
	FieldName string `json:"fieldName,omitempty"`
	Value     string `json:"value"`
}

// Questionnaire form types, one per report period.
const (
	FormTypeDaily   = 7
	FormTypeWeekly  = 8
	FormTypeMonthly = 9
)

// GetFormFields fetches the questionnaire attached to a report form and
// fills every field with the default answer.
func (c *Client) GetFormFields(ctx context.Context, formType int) ([]FormField, error) {
	t, err := c.encryptedTimestamp()
	if err != nil {
		return nil, err
	}

	rsp, err := c.call(ctx, callParams{
		endpoint: "practice/paper/v2/info",
		payload:  map[string]any{"formType": formType, "t": t},
		authed:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("get form fields: %w", err)
	}

	var form struct {
		FormFieldDtoList []FormField `json:"formFieldDtoList"`
	}
	if len(rsp.Data) > 0 {
		if err := json.Unmarshal(rsp.Data, &form); err != nil {
			return nil, fmt.Errorf("decode form fields: %w", err)
		}
	}
	if len(form.FormFieldDtoList) == 0 {
		return nil, nil
	}

	c.logger.Info("questionnaire detected, auto-filling", "fields", len(form.FormFieldDtoList))
	for i := range form.FormFieldDtoList {
		form.FormFieldDtoList[i].Value = "b"
	}
	return form.FormFieldDtoList, nil
}

// JobInfo is the account's internship job record.
type JobInfo struct {
	JobID   string `json:"jobId"`
	JobName string `json:"jobName"`
	Company string `json:"companyName"`
}

// GetJobInfo returns the internship job bound to the active plan. A zero
// JobInfo means the account has none on file.
func (c *Client) GetJobInfo(ctx context.Context) (*JobInfo, error) {
	t, err := c.encryptedTimestamp()
	if err != nil {
		return nil, err
	}

	rsp, err := c.call(ctx, callParams{
		endpoint: "practice/job/v4/infoByStu",
		payload:  map[string]any{"planId": c.State.PlanID, "t": t},
		authed:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("get job info: %w", err)
	}

	var job JobInfo
	if len(rsp.Data) > 0 && string(rsp.Data) != "null" {
		if err := json.Unmarshal(rsp.Data, &job); err != nil {
			return nil, fmt.Errorf("decode job info: %w", err)
		}
	}
	return &job, nil
}

// GetUploadToken returns the object-storage upload token for report images.
func (c *Client) GetUploadToken(ctx context.Context) (string, error) {
	t, err := c.encryptedTimestamp()
	if err != nil {
		return "", err
	}

	rsp, err := c.call(ctx, callParams{
		endpoint: "session/upload/v1/token",
		payload:  map[string]any{"t": t},
		authed:   true,
	})
	if err != nil {
		return "", fmt.Errorf("get upload token: %w", err)
	}

	var token string
	if err := json.Unmarshal(rsp.Data, &token); err != nil {
		return "", fmt.Errorf("decode upload token: %w", err)
	}
	return token, nil
}

// monthBounds formats the current month window the listing endpoint expects.
// The end bound's trailing Z is part of the wire contract, odd as it looks.
func monthBounds(now time.Time) (string, string) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastDay := start.AddDate(0, 1, -1)
	return start.Format("2006-01-02 15:04:05"), lastDay.Format("2006-01-02 00:00:00Z")
}

// emptyReportPayload returns every field of the paper-save contract set to
// null; the platform rejects bodies with fields missing outright.
func emptyReportPayload() map[string]any {
	keys := []string{
		"address", "applyId", "applyName", "attachmentList", "commentNum",
		"commentContent", "content", "createBy", "createTime", "depName",
		"reject", "endTime", "headImg", "yearmonth", "imageList", "isFine",
		"latitude", "gpmsSchoolYear", "longitude", "planId", "planName",
		"reportId", "reportType", "reportTime", "isOnTime", "schoolId",
		"startTime", "state", "studentId", "studentNumber", "supportNum",
		"title", "url", "username", "weeks", "videoUrl", "videoTitle",
		"attachments", "companyName", "jobName", "jobId", "score",
		"tpJobId", "starNum", "confirmDays", "isApply", "compStarNum",
		"compScore", "compComment", "compState", "apply", "levelEntity",
		"formFieldDtoList", "fieldEntityList", "feedback", "handleWay",
		"isWarning", "warningType", "t",
	}
	payload := make(map[string]any, len(keys))
	for _, k := range keys {
		payload[k] = nil
	}
	return payload
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
