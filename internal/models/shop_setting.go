// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "time"

// Shop setting keys.
const (
	SettingNotifyEmails = "notify_email_addresses"
	SettingReplyTo      = "reply_to"
)

// ShopSetting represents a single configuration key-value pair.
type ShopSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShopSettings is a convenience map for accessing settings by key.
type ShopSettings map[string]string

// Get returns the value for a key, or the fallback if the key doesn't exist.
func (s ShopSettings) Get(key, fallback string) string {
	if v, ok := s[key]; ok && v != "" {
		return v
	}
	return fallback
}
