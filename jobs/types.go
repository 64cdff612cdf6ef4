package jobs

import (
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
)

type JobKind string

const (
	JobImportReportCSV        JobKind = "ImportReportCSV"
	JobLinkUnlinkedReport     JobKind = "LinkUnlinkedReport"
	JobGenerateBaseReport     JobKind = "GenerateBaseReport"
	JobGenerateUserReports    JobKind = "GenerateUserReports"
	JobBaseReportGenerateCsv  JobKind = "BaseReportGenerateCsv"
	JobBaseReportGenerateXlsx JobKind = "BaseReportGenerateXlsx"
	JobUserReportGenerateCsv  JobKind = "UserReportGenerateCsv"
	JobCreatePayments         JobKind = "CreatePayments"
	JobDeletePayments         JobKind = "DeletePayments"
	JobCancelImport           JobKind = "CancelImport"
)

// Envelope is the wire format of every queued job. JobId doubles as the
// progress-store key and the idempotency handle across redeliveries.
type Envelope struct {
	JobId string          `json:"job_id"`
	Kind  JobKind         `json:"kind"`
	Data  json.RawMessage `json:"data"`
}

type ImportReportCSVPayload struct {
	Distributor    models.Distributor `json:"distributor"`
	ReportingMonth string             `json:"reporting_month"`
	FilePath       string             `json:"file_path"`
	FileName       string             `json:"file_name"`
}

type LinkUnlinkedReportPayload struct {
	BucketId int `json:"bucket_id"`
	LabelId  int `json:"label_id"`
}

type GenerateBaseReportPayload struct {
	Distributor    models.Distributor `json:"distributor"`
	ReportingMonth string             `json:"reporting_month"`
}

type GenerateUserReportsPayload struct {
	BaseReportId int `json:"base_report_id"`
}

type ReportExportPayload struct {
	BaseReportId int  `json:"base_report_id"`
	UserReportId *int `json:"user_report_id"`
}

// CancelImportPayload targets the import job to stop; the running import
// notices the FAILED status at its next cancellation checkpoint.
type CancelImportPayload struct {
	TargetJobId string `json:"target_job_id"`
}

type PaymentsPayload struct {
	BaseReportId int        `json:"base_report_id"`
	PaidOn       *time.Time `json:"paid_on"`
}

// PubSubPushEnvelope is the JSON body Google wraps push deliveries in.
type PubSubPushEnvelope struct {
	Message struct {
		Data      []byte `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}
