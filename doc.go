// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

// Package submit implements the session negotiation of an ESMTP submission
// client: EHLO capability discovery, opportunistic or explicit STARTTLS and
// SMTP authentication with mechanism fallback.
package submit

// VERSION indicates the current version of the package
const VERSION = "0.1.0"
