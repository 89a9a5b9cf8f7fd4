// SPDX-License-Identifier: MIT
package config

import "signalmath/internal/records"

// MathLibSetting returns the math_lib section as the engine record.
func (c *Config) MathLibSetting() records.MathLibSetting {
	m := c.MathLib
	return records.MathLibSetting{
		SamplingRate:       int32(m.SamplingRate),
		ProcessWinFreq:     int32(m.ProcessWinFreq),
		FFTWindow:          int32(m.FFTWindow),
		NFirstSecSkipped:   int32(m.NFirstSecSkipped),
		BipolarMode:        records.Flag(m.BipolarMode),
		ChannelsNumber:     int32(m.ChannelsNumber),
		ChannelForAnalysis: int32(m.ChannelForAnalysis),
	}
}

// ArtifactDetectSetting returns the artifact_detect section as the engine record.
func (c *Config) ArtifactDetectSetting() records.ArtifactDetectSetting {
	a := c.ArtifactDetect
	return records.ArtifactDetectSetting{
		ArtBord:                 int32(a.ArtBord),
		AllowedPercentArtpoints: int32(a.AllowedPercentArtpoints),
		RawBetapLimit:           int32(a.RawBetapLimit),
		TotalPowBorder:          int32(a.TotalPowBorder),
		GlobalArtwinSec:         int32(a.GlobalArtwinSec),
		SpectArtByTotalp:        records.Flag(a.SpectArtByTotalp),
		HanningWinSpectrum:      records.Flag(a.HanningWinSpectrum),
		HammingWinSpectrum:      records.Flag(a.HammingWinSpectrum),
		NumWinsForQualityAvg:    int32(a.NumWinsForQualityAvg),
	}
}

// ShortArtifactDetectSetting returns the short_artifact_detect section as the engine record.
func (c *Config) ShortArtifactDetectSetting() records.ShortArtifactDetectSetting {
	s := c.ShortArtifactDetect
	return records.ShortArtifactDetectSetting{
		AmplArtDetectWinSize:  int32(s.AmplArtDetectWinSize),
		AmplArtZerodArea:      int32(s.AmplArtZerodArea),
		AmplArtExtremumBorder: int32(s.AmplArtExtremumBorder),
	}
}

// MentalAndSpectralSetting returns the mental_and_spectral section as the engine record.
func (c *Config) MentalAndSpectralSetting() records.MentalAndSpectralSetting {
	return records.MentalAndSpectralSetting{
		NSecForInstantEstimation: int32(c.MentalAndSpectral.NSecForInstantEstimation),
		NSecForAveraging:         int32(c.MentalAndSpectral.NSecForAveraging),
	}
}

// PrioritySide returns session.priority_side as a SideType. Validate has
// already rejected unknown names, which map to SideNone here.
func (c *Config) PrioritySide() records.SideType {
	side, _ := records.ParseSide(c.Session.PrioritySide)
	return side
}
