/*
Copyright 2025 Praxis Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/praxisfinance/paysync/model"
)

// NotifiedFile is one file descriptor in a provider push notification.
type NotifiedFile struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Url  string `json:"url"`
}

// ReportNotification is the inbound webhook payload announcing newly
// available report files for an account.
type ReportNotification struct {
	AccountId string         `json:"account_id"`
	Files     []NotifiedFile `json:"files"`
}

func (r *ReportNotification) ValidateReportNotification() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AccountId, validation.Required),
		validation.Field(&r.Files, validation.Each(validation.By(validateNotifiedFile))),
	)
}

func validateNotifiedFile(value interface{}) error {
	file, _ := value.(NotifiedFile)
	return validation.ValidateStruct(&file,
		validation.Field(&file.Name, validation.Required),
		validation.Field(&file.Url, validation.Required),
	)
}

// ToWebhookFiles converts the notification payload to the engine's file
// descriptors.
func (r *ReportNotification) ToWebhookFiles() []model.WebhookFile {
	files := make([]model.WebhookFile, 0, len(r.Files))
	for _, f := range r.Files {
		files = append(files, model.WebhookFile{Name: f.Name, Type: f.Type, Url: f.Url})
	}
	return files
}

// TriggerSyncRequest is the manual run endpoint's payload.
type TriggerSyncRequest struct {
	Label string `json:"label"`
}
